package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// DumpRecordListing renders entries as an aligned table (path, hash, size),
// the RECORD-oriented analogue of the teacher's tar-header layer listing.
func DumpRecordListing(entries []wheelrecord.RecordEntry) string {
	ret := new(strings.Builder)
	table := tabwriter.NewWriter(ret, 0, 1, 1, ' ', 0)
	for _, entry := range entries {
		fmt.Fprintln(table, strings.Join([]string{"", entry.Path, entry.Hash, entry.Size}, "\t"))
	}
	table.Flush()
	return ret.String()
}

// DumpRecordFull renders entries with spew, for a full-fidelity diff once a
// listing-level diff has already narrowed down that two RECORDs disagree.
func DumpRecordFull(entries []wheelrecord.RecordEntry) string {
	return spewConfig.Sdump(entries)
}

// AssertEqualRecords compares two RECORD entry sets, first by listing (for a
// readable summary) and then in full, mirroring the teacher's
// AssertEqualLayers two-pass structure.
func AssertEqualRecords(t *testing.T, exp, act []wheelrecord.RecordEntry) bool {
	t.Helper()

	expListing := DumpRecordListing(exp)
	actListing := DumpRecordListing(act)
	if expListing != actListing {
		t.Errorf("RECORD listing diff:\n%s", unifiedDiff(expListing, actListing))
		return false
	}

	expFull := DumpRecordFull(exp)
	actFull := DumpRecordFull(act)
	if expFull != actFull {
		t.Errorf("RECORD full diff:\n%s", unifiedDiff(expFull, actFull))
		return false
	}
	return true
}

// DumpFileTree walks root and renders every regular file's path, mode, and
// size as an aligned table -- the installed-filesystem analogue of
// DumpRecordListing, for comparing what actually landed on disk.
func DumpFileTree(root string) (string, error) {
	var paths []string
	sizes := make(map[string]int64)
	modes := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		paths = append(paths, rel)
		sizes[rel] = info.Size()
		modes[rel] = info.Mode().String()
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths)

	ret := new(strings.Builder)
	table := tabwriter.NewWriter(ret, 0, 1, 1, ' ', 0)
	for _, p := range paths {
		fmt.Fprintln(table, strings.Join([]string{"", modes[p], fmt.Sprintf("%d", sizes[p]), p}, "\t"))
	}
	table.Flush()
	return ret.String(), nil
}

// AssertEqualFileTrees compares the file listing under two directory roots.
func AssertEqualFileTrees(t *testing.T, expRoot, actRoot string) bool {
	t.Helper()
	exp, err := DumpFileTree(expRoot)
	if err != nil {
		t.Errorf("error walking expected tree: %v", err)
		return false
	}
	act, err := DumpFileTree(actRoot)
	if err != nil {
		t.Errorf("error walking actual tree: %v", err)
		return false
	}
	if exp != act {
		t.Errorf("file tree diff:\n%s", unifiedDiff(exp, act))
		return false
	}
	return true
}

func unifiedDiff(exp, act string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(exp),
		B:        difflib.SplitLines(act),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	return diff
}
