package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/install/metadata"
)

func TestInstaller(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte("wheelinstall\n"), metadata.Installer("wheelinstall"))
}

func TestRequestedEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{}, metadata.Requested(""))
}

func TestRequestedWithReason(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte("# direct user request\n"), metadata.Requested("direct user request"))
}

func TestDirectURLJSON(t *testing.T) {
	t.Parallel()
	bs, err := metadata.DirectURLJSON(metadata.DirectURL{
		URL:         "file:///tmp/sampleproject-1.3.1-py2.py3-none-any.whl",
		ArchiveInfo: &metadata.ArchiveInfo{Hash: "sha256=abc"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"archive_info": {"hash": "sha256=abc"}, "url": "file:///tmp/sampleproject-1.3.1-py2.py3-none-any.whl"}`,
		string(bs))
}

func TestDirectURLJSONDirInfo(t *testing.T) {
	t.Parallel()
	bs, err := metadata.DirectURLJSON(metadata.DirectURL{
		URL:     "file:///home/user/project",
		DirInfo: &metadata.DirInfo{Editable: true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"dir_info": {"editable": true}, "url": "file:///home/user/project"}`, string(bs))
}
