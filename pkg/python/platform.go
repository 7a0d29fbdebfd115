package python

import (
	"fmt"
	"path/filepath"
	"runtime"
)

type Platform struct {
	ConsoleShebang   string // "/usr/bin/python3"
	GraphicalShebang string // "/usr/bin/python3"

	Scheme Scheme

	UID   int
	GID   int
	UName string
	GName string

	// PlatformTag is the target interpreter's wheel-style platform tag
	// (e.g. "win_amd64"), used to select a Windows launcher stub
	// architecture via pep425.ArchFromPlatformTag. Empty on non-Windows
	// targets, where no launcher stub is needed.
	PlatformTag string `json:"platform_tag,omitempty" yaml:"platform_tag,omitempty"`

	// LauncherKind is read from the platform file but is not consulted by
	// the install engine or the destinations: they always choose the
	// console or GUI launcher from each entry point's own section.
	LauncherKind string `json:"launcher_kind,omitempty" yaml:"launcher_kind,omitempty"`
}

// HostPlatformTag returns a best-effort win32/win_amd64/win_arm64-style
// platform tag for the architecture this process is itself running on.
// Used by Init to default PlatformTag when a platform file doesn't
// specify one; per this package's Platform.PlatformTag, stub selection
// is otherwise a function of the *target* interpreter, so this is only
// ever a fallback for a caller that hasn't stated a target explicitly,
// and this function is never called from pkg/launcher or pkg/install.
func HostPlatformTag(goos, goarch string) string {
	if goos != "windows" {
		return ""
	}
	switch goarch {
	case "386":
		return "win32"
	case "amd64":
		return "win_amd64"
	case "arm64":
		return "win_arm64"
	default:
		return ""
	}
}

type Scheme struct {
	// Installation directories: These are the directories described in
	// distutils.command.install.SCHEME_KEYS and
	// distutils.command.install.INSTALL_SCHEMES.
	PureLib string `json:"purelib"` // "/usr/lib/python3.9/site-packages"
	PlatLib string `json:"platlib"` // "/usr/lib64/python3.9/site-packages"
	Headers string `json:"headers"` // "/usr/include/python3.9/$name/" (e.g. $name=cpython)
	Scripts string `json:"scripts"` // "/usr/bin"
	Data    string `json:"data"`    // "/usr"
}

// Init normalizes the shebangs, defaults PlatformTag from the running
// host when the platform file doesn't specify one, and validates that
// the scheme has absolute paths.
func (plat *Platform) Init() error {
	if plat.ConsoleShebang == "" && plat.GraphicalShebang == "" {
		return fmt.Errorf("Platform specification does not specify a path to use for shebangs")
	}
	if plat.ConsoleShebang == "" {
		plat.ConsoleShebang = plat.GraphicalShebang
	}
	if plat.GraphicalShebang == "" {
		plat.GraphicalShebang = plat.ConsoleShebang
	}
	if plat.PlatformTag == "" {
		plat.PlatformTag = HostPlatformTag(runtime.GOOS, runtime.GOARCH)
	}
	for _, pair := range []struct {
		name string
		val  string
	}{
		{"purelib", plat.Scheme.PureLib},
		{"platlib", plat.Scheme.PlatLib},
		{"headers", plat.Scheme.Headers},
		{"scripts", plat.Scheme.Scripts},
		{"data", plat.Scheme.Data},
	} {
		if !filepath.IsAbs(pair.val) {
			return fmt.Errorf("Platform install scheme %q is not an absolute path: %q", pair.name, pair.val)
		}
	}
	return nil
}
