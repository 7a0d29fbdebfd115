package pep425_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/python/pep425"
)

func TestParseTag(t *testing.T) {
	t.Parallel()
	tag, ok := pep425.ParseTag("cp39-cp39-win_amd64")
	require.True(t, ok)
	assert.Equal(t, pep425.Tag{Python: "cp39", ABI: "cp39", Platform: "win_amd64"}, tag)
	assert.Equal(t, "cp39-cp39-win_amd64", tag.String())
}

func TestParseTagInvalid(t *testing.T) {
	t.Parallel()
	_, ok := pep425.ParseTag("not-a-tag")
	assert.False(t, ok)
}

func TestDecompress(t *testing.T) {
	t.Parallel()
	tag := pep425.Tag{Python: "py2.py3", ABI: "none", Platform: "any"}
	got := tag.Decompress()
	assert.Equal(t, []pep425.Tag{
		{Python: "py2", ABI: "none", Platform: "any"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}, got)
}

func TestArchFromPlatformTag(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"win32":            "32",
		"win_amd64":        "64",
		"win_arm64":        "64-arm",
		"manylinux_2_17_x86_64": "",
		"macosx_10_9_x86_64":    "",
	}
	for platform, want := range cases {
		assert.Equal(t, want, pep425.ArchFromPlatformTag(platform), platform)
	}
}
