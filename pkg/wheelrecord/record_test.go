package wheelrecord_test

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/internal/testutil"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	const src = "file.py,sha256=AVTFPZpEKzuHr7OvQZmhaU3LvwKz06AJw8mT_pNh2yI,3144\n" +
		"dist-1.0.dist-info/RECORD,,\n"

	entries, err := wheelrecord.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, wheelrecord.RecordEntry{
		Path: "file.py",
		Hash: "sha256=AVTFPZpEKzuHr7OvQZmhaU3LvwKz06AJw8mT_pNh2yI",
		Size: "3144",
	}, entries[0])
	assert.Equal(t, wheelrecord.RecordEntry{Path: "dist-1.0.dist-info/RECORD"}, entries[1])

	var buf bytes.Buffer
	require.NoError(t, wheelrecord.Serialize(&buf, entries))
	assert.Equal(t, src, buf.String())
}

func TestParseMalformedRow(t *testing.T) {
	t.Parallel()
	_, err := wheelrecord.Parse(strings.NewReader("a,b\n"))
	require.Error(t, err)
	var invalid *wheelrecord.InvalidRecordEntry
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Line)
}

func TestHashDeterminism(t *testing.T) {
	t.Parallel()
	for _, algo := range []string{"sha256", "sha384", "sha512"} {
		buf := []byte("hello, wheel")
		hashField, err := wheelrecord.HashBytes(algo, buf, wheelrecord.DefaultHashAlgorithms())
		require.NoError(t, err)
		entry := wheelrecord.RecordEntry{Path: "x", Hash: hashField, Size: "12"}
		ok, err := wheelrecord.Validate(entry, buf, wheelrecord.DefaultHashAlgorithms())
		require.NoError(t, err)
		assert.True(t, ok, algo)
	}
}

func TestValidateMismatch(t *testing.T) {
	t.Parallel()
	hashField, err := wheelrecord.HashBytes("sha256", []byte("expected"), wheelrecord.DefaultHashAlgorithms())
	require.NoError(t, err)
	entry := wheelrecord.RecordEntry{Path: "x", Hash: hashField, Size: "8"}
	ok, err := wheelrecord.Validate(entry, []byte("different"), wheelrecord.DefaultHashAlgorithms())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateNoHashSkipsVerification(t *testing.T) {
	t.Parallel()
	entry := wheelrecord.RecordEntry{Path: "dist-1.0.dist-info/RECORD"}
	ok, err := wheelrecord.Validate(entry, []byte("anything"), wheelrecord.DefaultHashAlgorithms())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashBytesIsDeterministic(t *testing.T) {
	t.Parallel()
	prop := func(buf []byte) bool {
		a, err := wheelrecord.HashBytes("sha256", buf, wheelrecord.DefaultHashAlgorithms())
		if err != nil {
			return false
		}
		b, err := wheelrecord.HashBytes("sha256", buf, wheelrecord.DefaultHashAlgorithms())
		if err != nil {
			return false
		}
		return a == b
	}
	testutil.QuickCheck(t, prop, quick.Config{MaxCount: 200},
		[]interface{}{[]byte(nil)},
		[]interface{}{[]byte{}},
	)
}

func TestHashBytesValidatesAgainstItself(t *testing.T) {
	t.Parallel()
	prop := func(buf []byte) bool {
		hashField, err := wheelrecord.HashBytes("sha256", buf, wheelrecord.DefaultHashAlgorithms())
		if err != nil {
			return false
		}
		entry := wheelrecord.RecordEntry{Path: "x", Hash: hashField, Size: strconv.Itoa(len(buf))}
		ok, err := wheelrecord.Validate(entry, buf, wheelrecord.DefaultHashAlgorithms())
		return err == nil && ok
	}
	testutil.QuickCheck(t, prop, quick.Config{MaxCount: 200})
}

func TestSerializeParseRoundTripsRandomEntries(t *testing.T) {
	t.Parallel()
	prop := func(rawPaths []string, contents [][]byte) bool {
		n := len(rawPaths)
		if len(contents) < n {
			n = len(contents)
		}
		var entries []wheelrecord.RecordEntry
		for i := 0; i < n; i++ {
			path := strings.ReplaceAll(rawPaths[i], ",", "")
			path = strings.ReplaceAll(path, "\n", "")
			path = strings.ReplaceAll(path, "\r", "")
			if path == "" {
				continue
			}
			hashField, err := wheelrecord.HashBytes("sha256", contents[i], wheelrecord.DefaultHashAlgorithms())
			if err != nil {
				return false
			}
			entries = append(entries, wheelrecord.RecordEntry{
				Path: path,
				Hash: hashField,
				Size: strconv.Itoa(len(contents[i])),
			})
		}

		var buf bytes.Buffer
		if err := wheelrecord.Serialize(&buf, entries); err != nil {
			return false
		}
		roundTripped, err := wheelrecord.Parse(&buf)
		if err != nil {
			return false
		}
		return testutil.DumpRecordFull(entries) == testutil.DumpRecordFull(roundTripped)
	}
	testutil.QuickCheck(t, prop, quick.Config{MaxCount: 100})
}
