// Package wheelsource implements the wheel source protocol: opening a
// wheel ZIP archive, validating its top-level layout, and enumerating its
// content in RECORD order alongside per-entry scheme routing.
//
// Grounded on the teacher's pkg/python/pypa/bdist package: the wheel
// struct's Open/distInfoDir/parseDistInfoWheel/integrityCheck and
// installToVFS's scheme-routing walk, generalized from "install straight
// into an in-memory VFS keyed by destination path" into "yield content
// elements the caller routes", per the specification's two-layer
// interface design.
package wheelsource

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/python/pep440"
	"github.com/go-python/wheelinstall/pkg/python/pep503"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

// SupportedWheelVersion is the Wheel-Version this source accepts: any
// version whose major component matches is accepted (minor differences
// only warn), any greater major component is rejected.
var SupportedWheelVersion = mustParseVersion("1.0")

func mustParseVersion(s string) pep440.Version {
	v, err := pep440.ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return *v
}

// WheelFilenameError reports a wheel filename that does not conform to
// PEP 427 naming.
type WheelFilenameError struct {
	Filename string
	Reason   string
}

func (e *WheelFilenameError) Error() string {
	return fmt.Sprintf("wheelsource: invalid wheel filename %q: %s", e.Filename, e.Reason)
}

// InvalidWheelSource reports a wheel archive whose layout violates
// expectations (missing/multiple dist-info, name/version mismatch,
// missing files RECORD claims).
type InvalidWheelSource struct {
	Reason string
}

func (e *InvalidWheelSource) Error() string {
	return fmt.Sprintf("wheelsource: invalid wheel: %s", e.Reason)
}

// UnsupportedWheelVersion reports a WHEEL file whose Wheel-Version major
// component exceeds SupportedWheelVersion's.
type UnsupportedWheelVersion struct {
	Found pep440.Version
}

func (e *UnsupportedWheelVersion) Error() string {
	return fmt.Sprintf("wheelsource: unsupported Wheel-Version: %s", e.Found.String())
}

// Metadata is the parsed WHEEL file.
type Metadata struct {
	WheelVersion   pep440.Version
	RootIsPurelib  bool
	Raw            textproto.MIMEHeader
}

// ContentElement is the unit yielded by enumeration: a RECORD row's path
// data plus the resolved scheme, a one-shot stream, and the executable
// bit read from the ZIP entry's Unix mode.
type ContentElement struct {
	Scheme       string
	Path         string // path relative to the resolved scheme root
	RecordPath   string // the entry's path exactly as RECORD/the archive names it
	RecordHash   string
	RecordSize   string
	IsExecutable bool
	Open         func() (io.ReadCloser, error)
}

var reWheelFilename = regexp.MustCompile(`^([^-]+)-([^-]+)(?:-[0-9][^-]*)?-([^-]+-[^-]+-[^-]+)\.whl$`)

// ParseFilename splits a wheel filename into its normalized distribution
// name and version, per the specification's simplified rule: split on
// "-", take the first two components, normalize the name.
func ParseFilename(filename string) (name, version string, err error) {
	base := path.Base(filename)
	match := reWheelFilename.FindStringSubmatch(base)
	if match == nil {
		return "", "", &WheelFilenameError{Filename: filename, Reason: "does not match <name>-<version>[-<build>]-<py>-<abi>-<plat>.whl"}
	}
	return pep503.NormalizeName(match[1]), match[2], nil
}

// Source is an open wheel ZIP archive.
type Source struct {
	zip *zip.Reader

	Name        string
	Version     string
	DistInfoDir string

	metadata *Metadata
	record   []wheelrecord.RecordEntry
}

// Open validates and opens a wheel ZIP reader (already positioned at
// archive-relative zero, e.g. from zip.OpenReader or zip.NewReader) whose
// original filename is filename (used to derive name/version).
func Open(zr *zip.Reader, filename string) (*Source, error) {
	name, version, err := ParseFilename(filename)
	if err != nil {
		return nil, err
	}

	src := &Source{zip: zr, Name: name, Version: version}

	distInfoDir, err := src.findDistInfoDir()
	if err != nil {
		return nil, err
	}
	expected := name + "-" + version + ".dist-info"
	if distInfoDir != expected {
		return nil, &InvalidWheelSource{Reason: fmt.Sprintf("dist-info directory %q does not match filename-derived %q", distInfoDir, expected)}
	}
	src.DistInfoDir = distInfoDir

	if err := src.readMetadata(); err != nil {
		return nil, err
	}
	if err := src.readRecord(); err != nil {
		return nil, err
	}
	if err := src.checkArchiveMatchesRecord(); err != nil {
		return nil, err
	}

	return src, nil
}

func (src *Source) findDistInfoDir() (string, error) {
	dirs := make(map[string]struct{})
	for _, file := range src.zip.File {
		top := strings.SplitN(path.Clean(file.Name), "/", 2)[0]
		if strings.HasSuffix(top, ".dist-info") {
			dirs[top] = struct{}{}
		}
	}
	switch len(dirs) {
	case 0:
		return "", &InvalidWheelSource{Reason: ".dist-info directory not found"}
	case 1:
		for dir := range dirs {
			return dir, nil
		}
	}
	names := make([]string, 0, len(dirs))
	for dir := range dirs {
		names = append(names, dir)
	}
	sort.Strings(names)
	return "", &InvalidWheelSource{Reason: fmt.Sprintf("multiple .dist-info directories found: %v", names)}
}

func (src *Source) open(filename string) (io.ReadCloser, error) {
	filename = path.Clean(filename)
	for _, file := range src.zip.File {
		if path.Clean(file.Name) == filename {
			return file.Open()
		}
	}
	return nil, fmt.Errorf("wheelsource: %w: %q", ErrNotExist, filename)
}

func (src *Source) readMetadata() error {
	fh, err := src.open(path.Join(src.DistInfoDir, "WHEEL"))
	if err != nil {
		return &InvalidWheelSource{Reason: fmt.Sprintf("open WHEEL: %s", err)}
	}
	defer fh.Close()

	// textproto.Reader.ReadMIMEHeader wants a blank line to end the
	// header; WHEEL may or may not have one, so pad with CRLFs.
	reader := textproto.NewReader(bufio.NewReader(io.MultiReader(fh, strings.NewReader("\r\n\r\n\r\n"))))
	header, err := reader.ReadMIMEHeader()
	if err != nil {
		return &InvalidWheelSource{Reason: fmt.Sprintf("parse WHEEL: %s", err)}
	}

	rawVersion := header.Get("Wheel-Version")
	if rawVersion == "" {
		return &InvalidWheelSource{Reason: "WHEEL is missing required key Wheel-Version"}
	}
	wheelVersion, err := pep440.ParseVersion(rawVersion)
	if err != nil {
		return &InvalidWheelSource{Reason: fmt.Sprintf("parse Wheel-Version: %s", err)}
	}
	if wheelVersion.Major() > SupportedWheelVersion.Major() {
		return &UnsupportedWheelVersion{Found: *wheelVersion}
	}

	src.metadata = &Metadata{
		WheelVersion:  *wheelVersion,
		RootIsPurelib: strings.EqualFold(header.Get("Root-Is-Purelib"), "true"),
		Raw:           header,
	}
	return nil
}

// WarnIfNewerThanSupported logs (via dlog) if the wheel's minor version is
// newer than this source's supported version, per the specification's
// "warn if minor version is greater" rule.
func (src *Source) WarnIfNewerThanSupported(ctx context.Context) {
	if src.metadata.WheelVersion.Cmp(SupportedWheelVersion) > 0 {
		dlog.Warnf(ctx, "wheel's Wheel-Version (%s) is newer than this installer supports (%s)",
			src.metadata.WheelVersion.String(), SupportedWheelVersion.String())
	}
}

func (src *Source) readRecord() error {
	fh, err := src.open(path.Join(src.DistInfoDir, "RECORD"))
	if err != nil {
		return &InvalidWheelSource{Reason: fmt.Sprintf("open RECORD: %s", err)}
	}
	defer fh.Close()

	entries, err := wheelrecord.Parse(fh)
	if err != nil {
		return err
	}
	src.record = entries
	return nil
}

// checkArchiveMatchesRecord is the archive-wide integrity pre-check:
// every file RECORD lists must be present in the archive, and where
// RECORD carries a hash or size for it, the archive's own content must
// match. A wheel can simultaneously have a missing file and a hash
// mismatch on another, so every problem found is collected via
// derror.MultiError rather than returning only the first one -- the
// same aggregation the teacher's own wheel.integrityCheck performs for
// this job, generalized from validating a single install-time VFS walk
// into validating the archive up front, before any content is
// streamed to a destination. Each file's content is hashed streaming
// (one file open at a time) rather than buffered whole, so this check
// does not cost more memory than the streaming install pass it
// precedes.
func (src *Source) checkArchiveMatchesRecord() error {
	byPath := make(map[string]*zip.File, len(src.zip.File))
	for _, file := range src.zip.File {
		byPath[path.Clean(file.Name)] = file
	}

	algorithms := wheelrecord.DefaultHashAlgorithms()
	recordPath := path.Join(src.DistInfoDir, "RECORD")
	var errs derror.MultiError
	for _, entry := range src.record {
		clean := path.Clean(entry.Path)
		if clean == recordPath {
			continue
		}
		file, ok := byPath[clean]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: listed in RECORD but missing from archive", entry.Path))
			continue
		}
		if file.FileInfo().IsDir() {
			// Bare directory ZIP markers are ignored, per the
			// specification's open-question resolution; a RECORD
			// row pointing at one is not a mismatch.
			continue
		}
		if entry.Hash == "" && entry.Size == "" {
			continue
		}
		fh, err := file.Open()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Path, err))
			continue
		}
		valid, err := wheelrecord.ValidateStream(entry, fh, algorithms)
		fh.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Path, err))
			continue
		}
		if !valid {
			errs = append(errs, fmt.Errorf("%s: does not match RECORD's hash or size", entry.Path))
		}
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return &InvalidWheelSource{Reason: errs.Error()}
	}
	return nil
}

// Metadata returns the parsed WHEEL file.
func (src *Source) Metadata() Metadata { return *src.metadata }

// Record returns the wheel's own RECORD entries, as parsed, in RECORD
// order and with each path exactly as written in RECORD (used by the
// install engine to verify what it actually wrote).
func (src *Source) Record() []wheelrecord.RecordEntry { return src.record }

// ContentElements enumerates the wheel's content in RECORD order,
// resolving each entry's installation scheme. Bare directory markers
// (RECORD rows or archive entries with no corresponding regular file) are
// silently skipped, per the specification's open-question resolution.
func (src *Source) ContentElements() ([]ContentElement, error) {
	recordPath := path.Join(src.DistInfoDir, "RECORD")
	dataDirName := src.Name + "-" + src.Version + ".data/"

	byPath := make(map[string]*zip.File, len(src.zip.File))
	for _, file := range src.zip.File {
		byPath[path.Clean(file.Name)] = file
	}

	elems := make([]ContentElement, 0, len(src.record))
	for _, entry := range src.record {
		clean := path.Clean(entry.Path)
		if clean == recordPath {
			continue
		}
		file, ok := byPath[clean]
		if !ok || file.FileInfo().IsDir() {
			continue
		}

		scheme, relPath := resolveScheme(clean, dataDirName, src.DistInfoDir, src.metadata.RootIsPurelib)

		externalAttrs := python.ParseZIPExternalAttributes(file.ExternalAttrs)
		isExecutable := externalAttrs.UNIX&(python.ModePermUsrX|python.ModePermGrpX|python.ModePermOthX) != 0

		fileRef := file
		elems = append(elems, ContentElement{
			Scheme:       scheme,
			Path:         relPath,
			RecordPath:   entry.Path,
			RecordHash:   entry.Hash,
			RecordSize:   entry.Size,
			IsExecutable: isExecutable,
			Open:         func() (io.ReadCloser, error) { return fileRef.Open() },
		})
	}
	return elems, nil
}

// resolveScheme implements 4.C's scheme routing rule, including the
// dist-info membership carve-out.
func resolveScheme(cleanPath, dataDirName, distInfoDir string, rootIsPurelib bool) (scheme, relPath string) {
	if strings.HasPrefix(cleanPath, distInfoDir+"/") {
		if rootIsPurelib {
			return "purelib", cleanPath
		}
		return "platlib", cleanPath
	}
	if strings.HasPrefix(cleanPath, dataDirName) {
		rest := strings.TrimPrefix(cleanPath, dataDirName)
		parts := strings.SplitN(rest, "/", 2)
		key := parts[0]
		var tail string
		if len(parts) > 1 {
			tail = parts[1]
		}
		return key, tail
	}
	if rootIsPurelib {
		return "purelib", cleanPath
	}
	return "platlib", cleanPath
}

// DistInfoFilenames returns the archive-relative names of every regular
// file under the wheel's dist-info directory, in sorted order. This is a
// convenience for callers (such as a CLI "inspect" command) that want the
// wheel's own metadata file listing without walking ContentElements;
// original_source/src/installer/sources.py exposes the analogous
// `dist_info_dir` + a caller-side glob, which this collapses into one
// call.
func (src *Source) DistInfoFilenames() []string {
	prefix := src.DistInfoDir + "/"
	var names []string
	for _, file := range src.zip.File {
		if file.FileInfo().IsDir() {
			continue
		}
		clean := path.Clean(file.Name)
		if strings.HasPrefix(clean, prefix) {
			names = append(names, clean)
		}
	}
	sort.Strings(names)
	return names
}

// ErrNotExist is wrapped by errors returned from OpenDistInfoFile for a
// name that doesn't exist in the archive, so callers can distinguish
// "this wheel has no entry_points.txt" from a real I/O failure.
var ErrNotExist = fmt.Errorf("does not exist in wheel zip archive")

// OpenDistInfoFile opens name (e.g. "entry_points.txt") from the
// wheel's dist-info directory. Returns an error wrapping ErrNotExist if
// no such file is present -- not every wheel declares entry points.
func (src *Source) OpenDistInfoFile(name string) (io.ReadCloser, error) {
	return src.open(path.Join(src.DistInfoDir, name))
}
