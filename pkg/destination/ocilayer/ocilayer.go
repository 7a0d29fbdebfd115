// Package ocilayer implements destination.Destination by accumulating
// installed files into a container image layer instead of a live
// filesystem, reusing the teacher's own fsutil.FileReference machinery.
//
// Grounded on the teacher's pkg/python/pypa/bdist.installToVFS (which
// populates exactly this kind of map[string]fsutil.FileReference during
// a wheel install) and pkg/python/pep376.RecordRequested's
// tar.Header-derived fs.FileInfo construction, adapted from a
// post-install hook into a standalone Destination.
package ocilayer

import (
	"archive/tar"
	"fmt"
	"hash"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	ociv1tarball "github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/go-python/wheelinstall/pkg/destination"
	"github.com/go-python/wheelinstall/pkg/fsutil"
	"github.com/go-python/wheelinstall/pkg/launcher"
	"github.com/go-python/wheelinstall/pkg/python/pep425"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

// Destination accumulates installed files as fsutil.FileReference
// entries and, once Finalize returns, is ready to be turned into a
// layer with Layer.
//
// Unlike destination.FSDestination, this implementation buffers each
// file's full content in memory as it is written -- the same trade-off
// the teacher's own bdist.installToVFS makes, because a single-layer
// OCI tarball is written as one contiguous stream and there is no
// streaming tar-layer builder in the teacher's dependency set. This is
// an accepted exception to the general "bounded memory" design note:
// it applies only to this secondary backend, not to the primary
// filesystem destination.
type Destination struct {
	Schemes      map[string]string
	RecordScheme string

	ConsoleInterpreter string
	GUIInterpreter     string
	PlatformTag        string
	HashAlgorithm      string

	// Algorithms is the allow-list HashAlgorithm is drawn from; defaults
	// to wheelrecord.DefaultHashAlgorithms() when nil.
	Algorithms map[string]func() hash.Hash

	ClampTime time.Time

	files map[string]fsutil.FileReference
}

var _ destination.Destination = (*Destination)(nil)

func (d *Destination) init() {
	if d.files == nil {
		d.files = make(map[string]fsutil.FileReference)
	}
}

func (d *Destination) hashAlgorithm() string {
	if d.HashAlgorithm != "" {
		return d.HashAlgorithm
	}
	return wheelrecord.DefaultHashAlgorithm
}

func (d *Destination) algorithms() map[string]func() hash.Hash {
	if d.Algorithms != nil {
		return d.Algorithms
	}
	return wheelrecord.DefaultHashAlgorithms()
}

func cleanRelPath(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty path")
	}
	clean := path.Clean(relPath)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes scheme root: %q", relPath)
	}
	return clean, nil
}

func (d *Destination) writeBytes(scheme, relPath string, content []byte, isExecutable bool) (wheelrecord.RecordEntry, error) {
	d.init()

	prefix, ok := d.Schemes[scheme]
	if !ok {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: relPath, Err: fmt.Errorf("unknown scheme %q", scheme)}
	}
	clean, err := cleanRelPath(relPath)
	if err != nil {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: relPath, Err: err}
	}
	fullName := strings.TrimPrefix(path.Join(prefix, clean), "/")

	mode := int64(0o644)
	if isExecutable {
		mode = 0o755
	}
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     fullName,
		Mode:     mode,
		Size:     int64(len(content)),
	}
	d.files[fullName] = &fsutil.InMemFileReference{
		FileInfo:  header.FileInfo(),
		MFullName: fullName,
		MContent:  content,
	}

	recordPrefix, ok := d.Schemes[d.RecordScheme]
	if !ok {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: relPath, Err: fmt.Errorf("unknown record scheme %q", d.RecordScheme)}
	}
	recordPrefix = strings.TrimPrefix(recordPrefix, "/")
	recordPath, err := filepath.Rel(filepath.FromSlash(recordPrefix), filepath.FromSlash(fullName))
	if err != nil {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: fullName, Err: err}
	}
	recordPath = filepath.ToSlash(recordPath)

	hashField, err := wheelrecord.HashBytes(d.hashAlgorithm(), content, d.algorithms())
	if err != nil {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: fullName, Err: err}
	}

	return wheelrecord.RecordEntry{
		Path: recordPath,
		Hash: hashField,
		Size: strconv.Itoa(len(content)),
	}, nil
}

func (d *Destination) WriteFile(scheme, relPath string, r io.Reader, isExecutable bool) (wheelrecord.RecordEntry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_file", Path: relPath, Err: err}
	}
	return d.writeBytes(scheme, relPath, content, isExecutable)
}

func (d *Destination) WriteScript(script launcher.Script) (wheelrecord.RecordEntry, error) {
	interpreter := d.ConsoleInterpreter
	if script.Section == launcher.GUI && d.GUIInterpreter != "" {
		interpreter = d.GUIInterpreter
	}
	if interpreter == "" {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_script", Path: script.Name, Err: fmt.Errorf("no interpreter configured")}
	}

	if d.PlatformTag == "" {
		content, err := launcher.BuildPOSIXScript(script, interpreter)
		if err != nil {
			return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_script", Path: script.Name, Err: err}
		}
		return d.writeBytes("scripts", script.Name, content, true)
	}

	arch := pep425.ArchFromPlatformTag(d.PlatformTag)
	content, err := launcher.BuildWindowsEXE(script, arch, interpreter)
	if err != nil {
		return wheelrecord.RecordEntry{}, &destination.Error{Op: "write_script", Path: script.Name, Err: err}
	}
	return d.writeBytes("scripts", script.Name+".exe", content, true)
}

func (d *Destination) Finalize(scheme, distInfoDir string, records []wheelrecord.RecordEntry, extraMetadata map[string][]byte) error {
	names := make([]string, 0, len(extraMetadata))
	for name := range extraMetadata {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry, err := d.writeBytes(scheme, path.Join(distInfoDir, name), extraMetadata[name], false)
		if err != nil {
			return err
		}
		records = append(records, entry)
	}

	recordRelPath := path.Join(distInfoDir, "RECORD")
	records = append(records, wheelrecord.RecordEntry{Path: recordRelPath})

	var buf strings.Builder
	if err := wheelrecord.Serialize(&buf, records); err != nil {
		return &destination.Error{Op: "finalize", Path: recordRelPath, Err: err}
	}
	if _, err := d.writeBytes(scheme, recordRelPath, []byte(buf.String()), false); err != nil {
		return err
	}
	return nil
}

// Layer materializes every file written so far into a single OCI image
// layer, via the teacher's fsutil.LayerFromFileReferences.
func (d *Destination) Layer(opts ...ociv1tarball.LayerOption) (ociv1.Layer, error) {
	d.init()
	refs := make([]fsutil.FileReference, 0, len(d.files))
	for _, ref := range d.files {
		refs = append(refs, ref)
	}
	clamp := d.ClampTime
	if clamp.IsZero() {
		clamp = time.Unix(0, 0).UTC()
	}
	return fsutil.LayerFromFileReferences(refs, clamp, opts...)
}
