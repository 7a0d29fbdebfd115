package wheelsource_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

func buildWheel(t *testing.T, wheelVersion string, files map[string]string, record string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}

	write("sample-1.3.1.dist-info/WHEEL", "Wheel-Version: "+wheelVersion+"\nRoot-Is-Purelib: true\n")
	write("sample-1.3.1.dist-info/METADATA", "Name: sample\nVersion: 1.3.1\n")
	for name, content := range files {
		write(name, content)
	}
	write("sample-1.3.1.dist-info/RECORD", record)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseFilename(t *testing.T) {
	t.Parallel()
	name, version, err := wheelsource.ParseFilename("sampleproject-1.3.1-py2.py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, "sampleproject", name)
	assert.Equal(t, "1.3.1", version)
}

func TestOpenAndEnumerate(t *testing.T) {
	t.Parallel()
	record := "sample/__init__.py,,\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", map[string]string{
		"sample/__init__.py": "# init\n",
	}, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	src, err := wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.NoError(t, err)

	elems, err := src.ContentElements()
	require.NoError(t, err)
	require.Len(t, elems, 3)
	assert.Equal(t, "sample/__init__.py", elems[0].Path)
	assert.Equal(t, "purelib", elems[0].Scheme)

	fh, err := elems[0].Open()
	require.NoError(t, err)
	content, err := io.ReadAll(fh)
	require.NoError(t, err)
	assert.Equal(t, "# init\n", string(content))
}

func TestDataTreeRoutingMismatchedPrefixTreatedAsRegularFile(t *testing.T) {
	t.Parallel()
	record := "pkg-1.3.1.data/scripts/tool.sh,,\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", map[string]string{
		"pkg-1.3.1.data/scripts/tool.sh": "#!/bin/sh\necho hi\n",
	}, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	src, err := wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.NoError(t, err)

	elems, err := src.ContentElements()
	require.NoError(t, err)
	var found bool
	for _, e := range elems {
		if e.Path == "pkg-1.3.1.data/scripts/tool.sh" {
			found = true
			assert.Equal(t, "purelib", e.Scheme)
		}
	}
	assert.True(t, found, "a data-dir path not matching this wheel's own name-version is routed as a regular purelib file")
}

func TestDataTreeRoutingSameName(t *testing.T) {
	t.Parallel()
	record := "sample-1.3.1.data/scripts/tool.sh,,\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", map[string]string{
		"sample-1.3.1.data/scripts/tool.sh": "#!/bin/sh\necho hi\n",
	}, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	src, err := wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.NoError(t, err)

	elems, err := src.ContentElements()
	require.NoError(t, err)
	var found bool
	for _, e := range elems {
		if e.Scheme == "scripts" && e.Path == "tool.sh" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnsupportedWheelVersion(t *testing.T) {
	t.Parallel()
	record := "sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "2.0", nil, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	var unsupported *wheelsource.UnsupportedWheelVersion
	require.ErrorAs(t, err, &unsupported)
}

func TestMissingFileInRecord(t *testing.T) {
	t.Parallel()
	record := "sample/missing.py,,\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", nil, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	var invalid *wheelsource.InvalidWheelSource
	require.ErrorAs(t, err, &invalid)
}

// TestBareDirectoryMarkerInRecordNotFlaggedAsMissing covers the
// open-question resolution that bare directory ZIP entries are ignored,
// not treated as mismatches, even when RECORD lists one: some wheel
// builders emit an explicit directory entry for a package directory
// alongside its files.
func TestBareDirectoryMarkerInRecordNotFlaggedAsMissing(t *testing.T) {
	t.Parallel()
	record := "sample/,,\n" +
		"sample/__init__.py,,\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	write("sample-1.3.1.dist-info/WHEEL", "Wheel-Version: 1.0\nRoot-Is-Purelib: true\n")
	write("sample-1.3.1.dist-info/METADATA", "Name: sample\nVersion: 1.3.1\n")
	_, err := zw.Create("sample/") // bare directory marker, no content
	require.NoError(t, err)
	write("sample/__init__.py", "# init\n")
	write("sample-1.3.1.dist-info/RECORD", record)
	require.NoError(t, zw.Close())
	raw := buf.Bytes()

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.NoError(t, err)
}

func TestHashMismatchInRecord(t *testing.T) {
	t.Parallel()
	record := "sample/__init__.py,sha256=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,7\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", map[string]string{
		"sample/__init__.py": "# init\n",
	}, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	var invalid *wheelsource.InvalidWheelSource
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Error(), "sample/__init__.py")
}

// TestIntegrityCheckAggregatesEveryProblem covers the batched
// aggregation itself: a wheel can simultaneously have a file RECORD
// lists but the archive lacks, and a different file whose content
// doesn't match its RECORD hash. Both must surface in the one error
// Open returns, not just whichever was found first.
func TestIntegrityCheckAggregatesEveryProblem(t *testing.T) {
	t.Parallel()
	record := "sample/missing.py,,\n" +
		"sample/__init__.py,sha256=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,7\n" +
		"sample-1.3.1.dist-info/METADATA,,\n" +
		"sample-1.3.1.dist-info/WHEEL,,\n" +
		"sample-1.3.1.dist-info/RECORD,,\n"
	raw := buildWheel(t, "1.0", map[string]string{
		"sample/__init__.py": "# init\n",
	}, record)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	_, err = wheelsource.Open(zr, "sample-1.3.1-py2.py3-none-any.whl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample/missing.py")
	assert.Contains(t, err.Error(), "sample/__init__.py")
}
