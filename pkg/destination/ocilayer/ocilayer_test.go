package ocilayer_test

import (
	"archive/tar"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/destination/ocilayer"
	"github.com/go-python/wheelinstall/pkg/launcher"
	"github.com/go-python/wheelinstall/pkg/wheelrecord"
)

func newDestination() *ocilayer.Destination {
	return &ocilayer.Destination{
		Schemes: map[string]string{
			"purelib": "usr/lib/python3.9/site-packages",
			"scripts": "usr/bin",
		},
		RecordScheme:       "purelib",
		ConsoleInterpreter: "/usr/bin/python3",
	}
}

func TestWriteFileAccumulatesAndLayers(t *testing.T) {
	t.Parallel()
	dst := newDestination()

	entry, err := dst.WriteFile("purelib", "sample/__init__.py", strings.NewReader("# init\n"), false)
	require.NoError(t, err)
	assert.Equal(t, "sample/__init__.py", entry.Path)

	err = dst.Finalize("purelib", "sample-1.3.1.dist-info", []wheelrecord.RecordEntry{entry}, map[string][]byte{
		"INSTALLER": []byte("wheelinstall\n"),
	})
	require.NoError(t, err)

	layer, err := dst.Layer()
	require.NoError(t, err)

	rc, err := layer.Uncompressed()
	require.NoError(t, err)
	defer rc.Close()

	tr := tar.NewReader(rc)
	names := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}
	assert.True(t, names["usr/lib/python3.9/site-packages/sample/__init__.py"])
	assert.True(t, names["usr/lib/python3.9/site-packages/sample-1.3.1.dist-info/INSTALLER"])
	assert.True(t, names["usr/lib/python3.9/site-packages/sample-1.3.1.dist-info/RECORD"])
}

func TestWriteScriptWindows(t *testing.T) {
	t.Parallel()
	dst := newDestination()
	dst.PlatformTag = "win_amd64"

	entry, err := dst.WriteScript(launcher.Script{Name: "myapp", Module: "myapp.cli", Attribute: "main", Section: launcher.Console})
	require.NoError(t, err)
	assert.Equal(t, "../../../bin/myapp.exe", entry.Path)
}
