// Package pep425 implements the compatibility tag portion of PEP 425 --
// Compatibility Tags for Built Distributions.
//
// https://www.python.org/dev/peps/pep-0425/
//
// This package keeps two pieces: parsing the
// ``{python tag}-{abi tag}-{platform tag}`` component of a wheel filename
// (Tag, ParseTag, Decompress), and mapping a target platform tag to a
// Windows launcher-stub architecture (ArchFromPlatformTag). Selecting *which* of several
// candidate wheels is the best match for a target environment is a
// dependency-resolution concern that happens upstream of installation, so
// the preference/intersection machinery a resolver would need is not
// implemented here.
package pep425

import "strings"

// Tag is one compatibility tag, e.g. "cp39-cp39-manylinux_2_17_x86_64".
type Tag struct {
	Python   string
	ABI      string
	Platform string
}

// ParseTag splits the compressed ``{python}-{abi}-{platform}`` tag triple
// found in a wheel filename. Any of the three components may itself be a
// dot-separated compressed set (e.g. "py2.py3"); Decompress expands those.
func ParseTag(s string) (Tag, bool) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return Tag{}, false
	}
	return Tag{Python: parts[0], ABI: parts[1], Platform: parts[2]}, true
}

// Decompress expands a compressed tag (one whose components are
// dot-separated lists) into the set of tags it denotes.
func (t Tag) Decompress() []Tag {
	var ret []Tag
	for _, x := range strings.Split(t.Python, ".") {
		for _, y := range strings.Split(t.ABI, ".") {
			for _, z := range strings.Split(t.Platform, ".") {
				ret = append(ret, Tag{x, y, z})
			}
		}
	}
	return ret
}

func (t Tag) String() string {
	return t.Python + "-" + t.ABI + "-" + t.Platform
}

// ArchFromPlatformTag maps a platform tag (or the Platform field of a
// decompressed Tag) to the launcher stub architecture it corresponds to,
// for selecting among the ``t32``/``t64``/``t64-arm``/``w32``/``w64``/
// ``w64-arm`` launcher stubs. It returns "" if the platform tag names no
// known Windows architecture.
func ArchFromPlatformTag(platform string) string {
	p := strings.ToLower(platform)
	switch {
	case strings.Contains(p, "win32"):
		return "32"
	case strings.Contains(p, "win_amd64"):
		return "64"
	case strings.Contains(p, "win_arm64"):
		return "64-arm"
	default:
		return ""
	}
}
