// Package install implements the install engine: the orchestration
// that streams a wheel source's content through the launcher builder
// and into a destination, verifying each write against the source's
// own RECORD before finalizing a new one.
//
// Grounded on the teacher's pkg/python/pypa/bdist.InstallWheel and
// installToVFS, generalized from "install into one in-memory VFS map
// destined for an OCI layer" into "drive an arbitrary Destination",
// per the specification's two-layer interface design (§9).
package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datawire/dlib/derror"

	"github.com/go-python/wheelinstall/pkg/destination"
	"github.com/go-python/wheelinstall/pkg/launcher"
	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

// RecordMismatchError reports a file whose written hash or size
// diverges from the source wheel's own RECORD.
type RecordMismatchError struct {
	Path   string
	Reason string
}

func (e *RecordMismatchError) Error() string {
	return fmt.Sprintf("install: RECORD mismatch for %q: %s", e.Path, e.Reason)
}

// Install runs the five-step orchestration: it streams src's content
// elements into dst (rewriting scripts-scheme entries with a Python
// shebang through the launcher builder first), verifies each write that
// was not rewritten against src's own RECORD (a rewritten script's
// original bytes were already checked against RECORD when src was
// opened), builds launchers for every declared entry
// point, then finalizes dst with additionalMetadata and the assembled
// RECORD.
//
// plat supplies the interpreter path used to rewrite raw scripts-scheme
// script shebangs (step 3); dst is expected to already be configured
// with whatever interpreter/platform info it needs to build entry-point
// launchers itself (step 4), since building those is dst's own
// WriteScript responsibility, not the engine's.
func Install(
	ctx context.Context,
	src *wheelsource.Source,
	dst destination.Destination,
	plat python.Platform,
	additionalMetadata map[string][]byte,
) error {
	src.WarnIfNewerThanSupported(ctx)

	recordScheme := "platlib"
	if src.Metadata().RootIsPurelib {
		recordScheme = "purelib"
	}

	expected := make(map[string]wheelrecord.RecordEntry, len(src.Record()))
	for _, entry := range src.Record() {
		expected[entry.Path] = entry
	}

	elems, err := src.ContentElements()
	if err != nil {
		return err
	}

	var records []wheelrecord.RecordEntry
	for _, elem := range elems {
		entry, rewritten, err := installElement(elem, dst, plat)
		if err != nil {
			return err
		}
		if want, ok := expected[elem.RecordPath]; ok && !rewritten {
			if err := checkRecordMatch(want, entry); err != nil {
				return err
			}
		}
		records = append(records, entry)
	}

	scripts, err := readEntryPoints(src, plat)
	if err != nil {
		return err
	}
	for _, script := range scripts {
		entry, err := dst.WriteScript(script)
		if err != nil {
			return err
		}
		records = append(records, entry)
	}

	return dst.Finalize(recordScheme, src.DistInfoDir, records, additionalMetadata)
}

func installElement(elem wheelsource.ContentElement, dst destination.Destination, plat python.Platform) (wheelrecord.RecordEntry, bool, error) {
	fh, err := elem.Open()
	if err != nil {
		return wheelrecord.RecordEntry{}, false, err
	}
	defer fh.Close()

	isExecutable := elem.IsExecutable

	if elem.Scheme != "scripts" {
		entry, err := dst.WriteFile(elem.Scheme, elem.Path, fh, isExecutable)
		return entry, false, err
	}

	content, err := io.ReadAll(fh)
	if err != nil {
		return wheelrecord.RecordEntry{}, false, err
	}
	wasRewritten := false
	if launcher.HasPythonShebang(content, "") {
		// Windows launcher EXEs are only built from entry_points.txt
		// declarations (step 4), which carry the module:attr metadata
		// a raw script file doesn't have; on a Windows target a raw
		// scripts-scheme script is installed as-is.
		if plat.PlatformTag == "" {
			rewritten, err := launcher.RewritePOSIX(content, plat.ConsoleShebang)
			if err != nil {
				return wheelrecord.RecordEntry{}, false, err
			}
			content = rewritten
			isExecutable = true
			wasRewritten = true
		}
	}
	entry, err := dst.WriteFile(elem.Scheme, elem.Path, bytes.NewReader(content), isExecutable)
	return entry, wasRewritten, err
}

func checkRecordMatch(want, got wheelrecord.RecordEntry) error {
	var errs derror.MultiError
	if want.Hash != "" && want.Hash != got.Hash {
		errs = append(errs, fmt.Errorf("hash: wheel's RECORD says %q, wrote %q", want.Hash, got.Hash))
	}
	if want.Size != "" && want.Size != got.Size {
		errs = append(errs, fmt.Errorf("size: wheel's RECORD says %q, wrote %q", want.Size, got.Size))
	}
	if len(errs) > 0 {
		return &RecordMismatchError{Path: want.Path, Reason: errs.Error()}
	}
	return nil
}

func readEntryPoints(src *wheelsource.Source, plat python.Platform) ([]launcher.Script, error) {
	fh, err := src.OpenDistInfoFile("entry_points.txt")
	if err != nil {
		if errors.Is(err, wheelsource.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer fh.Close()
	// A non-empty PlatformTag means the target is Windows, where
	// console_scripts and gui_scripts get distinct launcher stubs; on
	// POSIX (empty PlatformTag) they are installed identically, so the
	// same name in both sections is ambiguous.
	return launcher.ParseEntryPoints(fh, plat.PlatformTag != "")
}
