// Package wheelrecord implements the PEP 376 RECORD manifest codec: the
// CSV format that lists every file an installed distribution owns,
// alongside its hash and size.
//
// https://packaging.python.org/en/latest/specifications/recording-installed-packages/
//
// Grounded on the RECORD handling in the teacher's
// pkg/python/pypa/bdist.wheel.integrityCheck (parse+validate) and
// pkg/python/pypa/recording_installs.Record (serialize), generalized from
// a one-shot install-time hook into a standalone codec used by both the
// wheel source (to read a wheel's own RECORD) and the install engine (to
// write the installed RECORD).
package wheelrecord

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"

	"github.com/go-python/wheelinstall/pkg/python"
)

// DefaultHashAlgorithms returns a fresh copy of the set of hash
// algorithms PEP 427 permits in a wheel's RECORD, drawn from the
// teacher's own hashlib.algorithms_guaranteed table: md5 and sha1 are
// explicitly excluded as too weak to sign a wheel's integrity.
//
// This allow-list is deliberately not a package-level registry:
// Validate, HashBytes, and ValidateStream all take it as a parameter,
// so a caller with a narrower or wider policy can supply its own map
// instead of mutating shared state.
func DefaultHashAlgorithms() map[string]func() hash.Hash {
	return map[string]func() hash.Hash{
		"sha256": python.HashlibAlgorithmsGuaranteed["sha256"],
		"sha384": python.HashlibAlgorithmsGuaranteed["sha384"],
		"sha512": python.HashlibAlgorithmsGuaranteed["sha512"],
	}
}

// DefaultHashAlgorithm is used when generating a new RECORD unless the
// caller configures something else from a DefaultHashAlgorithms() map.
const DefaultHashAlgorithm = "sha256"

// RecordEntry is one row of a RECORD file. Hash and Size are kept as their
// original textual form (rather than parsed) so that "absent" (empty
// string) and "present but zero" stay distinguishable, per the
// specification of the codec.
type RecordEntry struct {
	Path string
	Hash string // "" or "<algo>=<urlsafe-base64-digest-no-padding>"
	Size string // "" or a decimal integer
}

// InvalidRecordEntry reports a malformed RECORD row.
type InvalidRecordEntry struct {
	Line    int
	Content []string
	Reason  string
}

func (e *InvalidRecordEntry) Error() string {
	return fmt.Sprintf("wheelrecord: invalid RECORD row %d: %s: %q", e.Line, e.Reason, e.Content)
}

// Parse reads RECORD rows from r. RFC 4180 CSV quoting rules apply. Rows
// that don't have exactly 3 columns fail immediately with
// *InvalidRecordEntry, identifying the 1-based row number and the raw
// columns read.
//
// Parse reads eagerly into memory rather than truly lazily: encoding/csv's
// Reader does not expose a "read one record" cursor that survives errors
// cleanly enough to build a true iterator around within the scope of this
// package, and RECORD files describe at most as many rows as there are
// files in an installed distribution, never file *contents* -- so this
// does not risk the 2 GB-wheel-in-bounded-memory guarantee, which concerns
// file content streams, not the RECORD index itself.
func Parse(r io.Reader) ([]RecordEntry, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	var entries []RecordEntry
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &InvalidRecordEntry{Line: line, Content: row, Reason: err.Error()}
		}
		if len(row) != 3 {
			return nil, &InvalidRecordEntry{Line: line, Content: row, Reason: "does not have 3 columns"}
		}
		entries = append(entries, RecordEntry{Path: row[0], Hash: row[1], Size: row[2]})
	}
	return entries, nil
}

// Validate computes the digest of buf with the algorithm named in
// entry.Hash (of the form "<algo>=<digest>", a key of algorithms) and
// urlsafe-base64-encodes it without padding, then compares against
// entry.Hash and entry.Size. It never returns an error for a
// mismatch -- only false.
func Validate(entry RecordEntry, buf []byte, algorithms map[string]func() hash.Hash) (bool, error) {
	return ValidateStream(entry, bytes.NewReader(buf), algorithms)
}

// ValidateStream is Validate's streaming counterpart: it copies r's
// content through the hasher (and, if entry.Hash is empty but
// entry.Size is not, through a byte counter) instead of requiring the
// caller to buffer the whole file first. Used by the wheel source's
// archive-wide integrity check, which validates every file in the
// archive without holding more than one file's content in memory at a
// time.
func ValidateStream(entry RecordEntry, r io.Reader, algorithms map[string]func() hash.Hash) (bool, error) {
	if entry.Hash == "" {
		if entry.Size == "" {
			return true, nil
		}
		n, err := io.Copy(io.Discard, r)
		if err != nil {
			return false, err
		}
		return entry.Size == strconv.FormatInt(n, 10), nil
	}
	algo, digest, ok := strings.Cut(entry.Hash, "=")
	if !ok {
		return false, fmt.Errorf("wheelrecord.ValidateStream: malformed hash field: %q", entry.Hash)
	}
	newHasher, ok := algorithms[algo]
	if !ok {
		return false, fmt.Errorf("wheelrecord.ValidateStream: unsupported hash algorithm: %q", algo)
	}
	hasher := newHasher()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return false, err
	}
	actual := base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
	if actual != digest {
		return false, nil
	}
	if entry.Size != "" && entry.Size != strconv.FormatInt(n, 10) {
		return false, nil
	}
	return true, nil
}

// HashBytes computes the "<algo>=<digest>" hash field for buf using algo,
// which must be a key of algorithms (see DefaultHashAlgorithms).
func HashBytes(algo string, buf []byte, algorithms map[string]func() hash.Hash) (string, error) {
	newHasher, ok := algorithms[algo]
	if !ok {
		return "", fmt.Errorf("wheelrecord.HashBytes: unsupported hash algorithm: %q", algo)
	}
	hasher := newHasher()
	hasher.Write(buf)
	return algo + "=" + base64.RawURLEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// Serialize emits entries as RECORD-format CSV: comma-delimited, quoting
// only fields that need it, "/"-separated paths, and a trailing newline
// after every row.
func Serialize(w io.Writer, entries []RecordEntry) error {
	writer := csv.NewWriter(w)
	for _, entry := range entries {
		row := []string{strings.ReplaceAll(entry.Path, `\`, "/"), entry.Hash, entry.Size}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
