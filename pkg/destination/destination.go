// Package destination implements the installer's write side: the
// three-operation contract that receives streamed wheel content and
// turns it into installed files plus a terminal RECORD.
//
// Grounded on the teacher's pkg/python/pypa/bdist.installToVFS (scheme
// resolution and the executable-bit rule) and pkg/python/pypa/bdist/hack.go's
// genRecord (streaming hash+size while writing), generalized from
// "populate an in-memory fsutil.FileReference map for an OCI layer" into
// a Destination interface with two implementations: this package's own
// scheme-dictionary filesystem writer, and ocilayer's image-layer writer.
package destination

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-python/wheelinstall/pkg/launcher"
	"github.com/go-python/wheelinstall/pkg/python/pep425"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

// Error reports a destination write failure.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("destination: %s %q: %s", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Destination is the install engine's write-side collaborator.
type Destination interface {
	// WriteFile persists the bytes read from r under scheme's root at
	// path, applying the executable bit on POSIX if isExecutable, and
	// returns the RecordEntry to accumulate (hash and size computed
	// streaming, path expressed relative to the eventual RECORD root).
	WriteFile(scheme, relPath string, r io.Reader, isExecutable bool) (wheelrecord.RecordEntry, error)

	// WriteScript builds script's launcher (POSIX shebang script or
	// Windows EXE, per this destination's configured target) and writes
	// it to the scripts scheme.
	WriteScript(script launcher.Script) (wheelrecord.RecordEntry, error)

	// Finalize writes extraMetadata into distInfoDir (under scheme),
	// appends each written file's RecordEntry plus a terminal empty-hash
	// row for the RECORD file itself, and writes the assembled RECORD.
	Finalize(scheme, distInfoDir string, records []wheelrecord.RecordEntry, extraMetadata map[string][]byte) error
}

// FSDestination is the scheme-dictionary reference implementation:
// Schemes maps a symbolic scheme name to the absolute filesystem path
// its files are written under.
type FSDestination struct {
	Schemes map[string]string

	// RecordScheme is the scheme into which the wheel's dist-info was
	// placed (purelib or platlib); RECORD paths are expressed relative
	// to this scheme's root, matching the specification's "paths
	// relative to the site-packages root in which dist-info is placed."
	RecordScheme string

	// ConsoleInterpreter and GUIInterpreter are the absolute
	// interpreter paths written into generated launcher shebangs.
	ConsoleInterpreter string
	GUIInterpreter     string

	// PlatformTag is the target interpreter's wheel-style platform tag
	// (e.g. "win_amd64"); empty means build POSIX shell scripts instead
	// of Windows EXE launchers.
	PlatformTag string

	// HashAlgorithm names the entry in Algorithms used for RECORD
	// digests; defaults to wheelrecord.DefaultHashAlgorithm.
	HashAlgorithm string

	// Algorithms is the allow-list HashAlgorithm is drawn from; defaults
	// to wheelrecord.DefaultHashAlgorithms() when nil. Exposed as a
	// field rather than baked into the write path so a caller can
	// restrict or extend the allow-list without touching wheelrecord's
	// own defaults.
	Algorithms map[string]func() hash.Hash
}

var _ Destination = (*FSDestination)(nil)

func (d *FSDestination) hashAlgorithm() string {
	if d.HashAlgorithm != "" {
		return d.HashAlgorithm
	}
	return wheelrecord.DefaultHashAlgorithm
}

func (d *FSDestination) algorithms() map[string]func() hash.Hash {
	if d.Algorithms != nil {
		return d.Algorithms
	}
	return wheelrecord.DefaultHashAlgorithms()
}

// cleanRelPath validates that relPath is a wheel-style forward-slash
// relative path with no escape above its scheme root.
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

func (d *FSDestination) WriteFile(scheme, relPath string, r io.Reader, isExecutable bool) (wheelrecord.RecordEntry, error) {
	base, ok := d.Schemes[scheme]
	if !ok {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_file", Path: relPath, Err: fmt.Errorf("unknown scheme %q", scheme)}
	}
	clean, err := cleanRelPath(relPath)
	if err != nil {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_file", Path: relPath, Err: err}
	}
	full := filepath.Join(base, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return wheelrecord.RecordEntry{}, &Error{Op: "mkdir", Path: full, Err: err}
	}

	hash, size, err := writeAtomic(full, r, isExecutable, d.hashAlgorithm(), d.algorithms())
	if err != nil {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_file", Path: full, Err: err}
	}

	recordBase, ok := d.Schemes[d.RecordScheme]
	if !ok {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_file", Path: relPath, Err: fmt.Errorf("unknown record scheme %q", d.RecordScheme)}
	}
	recordPath, err := filepath.Rel(recordBase, full)
	if err != nil {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_file", Path: full, Err: err}
	}

	return wheelrecord.RecordEntry{
		Path: filepath.ToSlash(recordPath),
		Hash: hash,
		Size: strconv.FormatInt(size, 10),
	}, nil
}

// writeAtomic writes r's content to a temp file beside path, syncs and
// closes it, chmods it, then renames it over path -- an unconditional
// overwrite, per the specification's overwrite policy. It returns the
// RECORD hash field and byte count, computed streaming without
// buffering the file's content.
func writeAtomic(path string, r io.Reader, isExecutable bool, algorithm string, algorithms map[string]func() hash.Hash) (hashField string, size int64, err error) {
	newHasher, ok := algorithms[algorithm]
	if !ok {
		return "", 0, fmt.Errorf("unsupported hash algorithm: %q", algorithm)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	hasher := newHasher()
	size, err = io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	mode := os.FileMode(0o644)
	if isExecutable {
		mode = 0o755
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", 0, err
	}

	digest := base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
	return algorithm + "=" + digest, size, nil
}

func (d *FSDestination) WriteScript(script launcher.Script) (wheelrecord.RecordEntry, error) {
	interpreter := d.ConsoleInterpreter
	if script.Section == launcher.GUI && d.GUIInterpreter != "" {
		interpreter = d.GUIInterpreter
	}
	if interpreter == "" {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_script", Path: script.Name, Err: fmt.Errorf("no interpreter configured")}
	}

	if d.PlatformTag == "" {
		content, err := launcher.BuildPOSIXScript(script, interpreter)
		if err != nil {
			return wheelrecord.RecordEntry{}, &Error{Op: "write_script", Path: script.Name, Err: err}
		}
		return d.WriteFile("scripts", script.Name, bytes.NewReader(content), true)
	}

	arch := pep425.ArchFromPlatformTag(d.PlatformTag)
	content, err := launcher.BuildWindowsEXE(script, arch, interpreter)
	if err != nil {
		return wheelrecord.RecordEntry{}, &Error{Op: "write_script", Path: script.Name, Err: err}
	}
	return d.WriteFile("scripts", script.Name+".exe", bytes.NewReader(content), true)
}

func (d *FSDestination) Finalize(scheme, distInfoDir string, records []wheelrecord.RecordEntry, extraMetadata map[string][]byte) error {
	names := make([]string, 0, len(extraMetadata))
	for name := range extraMetadata {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry, err := d.WriteFile(scheme, path.Join(distInfoDir, name), bytes.NewReader(extraMetadata[name]), false)
		if err != nil {
			return err
		}
		records = append(records, entry)
	}

	recordRelPath := path.Join(distInfoDir, "RECORD")
	records = append(records, wheelrecord.RecordEntry{Path: recordRelPath})

	var buf bytes.Buffer
	if err := wheelrecord.Serialize(&buf, records); err != nil {
		return &Error{Op: "finalize", Path: recordRelPath, Err: err}
	}
	if _, err := d.WriteFile(scheme, recordRelPath, bytes.NewReader(buf.Bytes()), false); err != nil {
		return err
	}
	return nil
}

