package python_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-python/wheelinstall/pkg/python"
)

func validScheme() python.Scheme {
	return python.Scheme{
		PureLib: "/usr/lib/python3.9/site-packages",
		PlatLib: "/usr/lib64/python3.9/site-packages",
		Headers: "/usr/include/python3.9/cpython",
		Scripts: "/usr/bin",
		Data:    "/usr",
	}
}

func TestPlatformInitDefaultsPlatformTagFromHost(t *testing.T) {
	plat := python.Platform{ConsoleShebang: "/usr/bin/python3", Scheme: validScheme()}
	require.NoError(t, plat.Init())
	assert.Equal(t, python.HostPlatformTag(runtime.GOOS, runtime.GOARCH), plat.PlatformTag)
}

func TestPlatformInitPreservesExplicitPlatformTag(t *testing.T) {
	plat := python.Platform{ConsoleShebang: "/usr/bin/python3", Scheme: validScheme(), PlatformTag: "win_amd64"}
	require.NoError(t, plat.Init())
	assert.Equal(t, "win_amd64", plat.PlatformTag)
}

func TestHostPlatformTag(t *testing.T) {
	assert.Equal(t, "", python.HostPlatformTag("linux", "amd64"))
	assert.Equal(t, "win32", python.HostPlatformTag("windows", "386"))
	assert.Equal(t, "win_amd64", python.HostPlatformTag("windows", "amd64"))
	assert.Equal(t, "win_arm64", python.HostPlatformTag("windows", "arm64"))
	assert.Equal(t, "", python.HostPlatformTag("windows", "mips"))
}
