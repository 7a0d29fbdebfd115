package install_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/destination"
	"github.com/go-python/wheelinstall/pkg/install"
	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

type wheelFile struct {
	name    string
	content string
	mode    uint16
}

func buildWheel(t *testing.T, files []wheelFile, recordExtra ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var record bytes.Buffer
	for _, f := range files {
		fh := &zip.FileHeader{Name: f.name, Method: zip.Deflate}
		if f.mode != 0 {
			fh.SetMode(os.FileMode(f.mode))
		}
		fw, err := zw.CreateHeader(fh)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)

		sum := sha256.Sum256([]byte(f.content))
		hash := "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:])
		record.WriteString(f.name + "," + hash + "," + strconv.Itoa(len(f.content)) + "\n")
	}
	for _, extra := range recordExtra {
		record.WriteString(extra)
	}
	record.WriteString("sample-1.3.1.dist-info/RECORD,,\n")

	rw, err := zw.Create("sample-1.3.1.dist-info/RECORD")
	require.NoError(t, err)
	_, err = rw.Write(record.Bytes())
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openSource(t *testing.T, raw []byte, filename string) *wheelsource.Source {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	src, err := wheelsource.Open(zr, filename)
	require.NoError(t, err)
	return src
}

func newDestination(t *testing.T) (*destination.FSDestination, string) {
	t.Helper()
	root := t.TempDir()
	purelib := filepath.Join(root, "purelib")
	scripts := filepath.Join(root, "scripts")
	require.NoError(t, os.MkdirAll(purelib, 0o755))
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	return &destination.FSDestination{
		Schemes: map[string]string{
			"purelib": purelib,
			"scripts": scripts,
		},
		RecordScheme:       "purelib",
		ConsoleInterpreter: "/usr/bin/python3",
	}, root
}

func TestInstallPureWheelWithScript(t *testing.T) {
	t.Parallel()
	raw := buildWheel(t, []wheelFile{
		{name: "sample/__init__.py", content: "# init\n"},
		{name: "sample-1.3.1.dist-info/METADATA", content: "Name: sample\nVersion: 1.3.1\n"},
		{name: "sample-1.3.1.dist-info/WHEEL", content: "Wheel-Version: 1.0\nRoot-Is-Purelib: true\n"},
		{name: "sample-1.3.1.dist-info/entry_points.txt", content: "[console_scripts]\nsample = sample:main\n"},
	})
	src := openSource(t, raw, "sample-1.3.1-py2.py3-none-any.whl")
	dst, root := newDestination(t)
	plat := python.Platform{ConsoleShebang: "/usr/bin/python3", GraphicalShebang: "/usr/bin/python3"}

	err := install.Install(context.Background(), src, dst, plat, map[string][]byte{
		"INSTALLER": []byte("wheelinstall\n"),
	})
	require.NoError(t, err)

	assertFileExists(t, filepath.Join(root, "purelib", "sample", "__init__.py"))
	assertFileExists(t, filepath.Join(root, "purelib", "sample-1.3.1.dist-info", "METADATA"))
	assertFileExists(t, filepath.Join(root, "purelib", "sample-1.3.1.dist-info", "WHEEL"))
	assertFileExists(t, filepath.Join(root, "purelib", "sample-1.3.1.dist-info", "entry_points.txt"))
	assertFileExists(t, filepath.Join(root, "purelib", "sample-1.3.1.dist-info", "INSTALLER"))
	assertFileExists(t, filepath.Join(root, "scripts", "sample"))

	info, err := os.Stat(filepath.Join(root, "scripts", "sample"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)

	recordBytes, err := os.ReadFile(filepath.Join(root, "purelib", "sample-1.3.1.dist-info", "RECORD"))
	require.NoError(t, err)
	entries, err := wheelrecord.Parse(bytes.NewReader(recordBytes))
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "sample-1.3.1.dist-info/RECORD", last.Path)
	assert.Empty(t, last.Hash)
}

// TestOpenRejectsHashMismatch covers the archive-wide precheck: a wheel
// whose RECORD claims a hash its actual archive content won't produce is
// now rejected by wheelsource.Open itself, before install.Install (and
// so before any file is written), rather than surfacing partway through
// a streaming install.
func TestOpenRejectsHashMismatch(t *testing.T) {
	t.Parallel()

	// buildWheel's helper always records a file's true hash, so the
	// mismatch case is built by hand: foo.py's RECORD row claims a hash
	// that its actual archive content won't produce.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	write("sample-1.3.1.dist-info/METADATA", "Name: sample\nVersion: 1.3.1\n")
	write("sample-1.3.1.dist-info/WHEEL", "Wheel-Version: 1.0\nRoot-Is-Purelib: true\n")
	write("foo.py", "totally different bytes")
	write("sample-1.3.1.dist-info/RECORD",
		"foo.py,sha256=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,3\n"+
			"sample-1.3.1.dist-info/METADATA,,\n"+
			"sample-1.3.1.dist-info/WHEEL,,\n"+
			"sample-1.3.1.dist-info/RECORD,,\n")
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo.py")
}

// TestOpenAggregatesMultipleIntegrityProblems covers the batched
// aggregation itself: a wheel with both a missing file and a hash
// mismatch present simultaneously must report both, not just the first
// one encountered.
func TestOpenAggregatesMultipleIntegrityProblems(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	write("sample-1.3.1.dist-info/METADATA", "Name: sample\nVersion: 1.3.1\n")
	write("sample-1.3.1.dist-info/WHEEL", "Wheel-Version: 1.0\nRoot-Is-Purelib: true\n")
	write("foo.py", "totally different bytes")
	write("sample-1.3.1.dist-info/RECORD",
		"foo.py,sha256=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,3\n"+
			"missing.py,,\n"+
			"sample-1.3.1.dist-info/METADATA,,\n"+
			"sample-1.3.1.dist-info/WHEEL,,\n"+
			"sample-1.3.1.dist-info/RECORD,,\n")
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo.py")
	assert.Contains(t, err.Error(), "missing.py")
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err, "expected %s to exist", path)
}
