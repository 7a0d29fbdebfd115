// Package pep440 implements the version scheme described by PEP 440 --
// Version Identification and Dependency Specification.
//
// https://peps.python.org/pep-0440/
//
// Only the version scheme itself is implemented (parsing, normalization,
// comparison). Dependency specifiers ("version ranges") are not: a wheel
// installer never has to evaluate them, since by the time a wheel reaches
// the installer, dependency resolution has already happened. What remains
// is exactly what a wheel installer does need: comparing a WHEEL file's
// ``Wheel-Version`` against the version this installer supports, and
// parsing the version component out of a wheel filename.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// PreRelease is the ``{a|b|rc}N`` segment of a public version identifier.
type PreRelease struct {
	L string
	N int
}

// Version is a parsed, normalized PEP 440 version identifier.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	// Local is the ``+<local version label>`` segment, split on ``.`` and
	// ``-``/``_``; each segment compares numerically if it parses as an
	// integer, else lexically as a lowercased string.
	Local []intstr.IntOrString
}

// Adapted from PEP 440 Appendix B's permissive regular expression.
var reVersion = regexp.MustCompile(`(?i)^\s*` +
	`v?(?:(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?:post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<dev_n>[0-9]+)?)?)` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?\s*$`)

// ParseVersion parses and normalizes a PEP 440 version identifier, such as
// the ``Wheel-Version`` field of a WHEEL metadata file or the version
// component of a wheel filename.
func ParseVersion(str string) (*Version, error) {
	match := reVersion.FindStringSubmatch(str)
	if match == nil {
		return nil, fmt.Errorf("pep440.ParseVersion: invalid version: %q", str)
	}
	names := reVersion.SubexpNames()
	group := func(name string) string {
		for i, n := range names {
			if n == name {
				return match[i]
			}
		}
		return ""
	}

	var ver Version

	if epoch := group("epoch"); epoch != "" {
		n, err := strconv.Atoi(epoch)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseVersion: invalid epoch: %q: %w", str, err)
		}
		ver.Epoch = n
	}

	for _, part := range strings.Split(group("release"), ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseVersion: invalid release segment: %q: %w", str, err)
		}
		ver.Release = append(ver.Release, n)
	}

	if preL := group("pre_l"); preL != "" {
		n := 0
		if preN := group("pre_n"); preN != "" {
			var err error
			n, err = strconv.Atoi(preN)
			if err != nil {
				return nil, fmt.Errorf("pep440.ParseVersion: invalid pre-release: %q: %w", str, err)
			}
		}
		ver.Pre = &PreRelease{L: normalizePreL(preL), N: n}
	}

	if group("post") != "" {
		n := 0
		postN := group("post_n1")
		if postN == "" {
			postN = group("post_n2")
		}
		if postN != "" {
			var err error
			n, err = strconv.Atoi(postN)
			if err != nil {
				return nil, fmt.Errorf("pep440.ParseVersion: invalid post-release: %q: %w", str, err)
			}
		}
		ver.Post = &n
	}

	if group("dev") != "" {
		n := 0
		if devN := group("dev_n"); devN != "" {
			var err error
			n, err = strconv.Atoi(devN)
			if err != nil {
				return nil, fmt.Errorf("pep440.ParseVersion: invalid dev-release: %q: %w", str, err)
			}
		}
		ver.Dev = &n
	}

	if local := group("local"); local != "" {
		for _, seg := range regexp.MustCompile(`[-_.]`).Split(local, -1) {
			seg = strings.ToLower(seg)
			if n, err := strconv.Atoi(seg); err == nil {
				ver.Local = append(ver.Local, intstr.FromInt(n))
			} else {
				ver.Local = append(ver.Local, intstr.FromString(seg))
			}
		}
	}

	return &ver, nil
}

func normalizePreL(l string) string {
	switch strings.ToLower(l) {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	default:
		return strings.ToLower(l)
	}
}

// Major returns the first release segment, or 0 if absent.
func (ver Version) Major() int { return ver.releaseSegment(0) }

// Minor returns the second release segment, or 0 if absent.
func (ver Version) Minor() int { return ver.releaseSegment(1) }

func (ver Version) releaseSegment(n int) int {
	if n >= len(ver.Release) {
		return 0
	}
	return ver.Release[n]
}

// String renders the version in its normalized form.
func (ver Version) String() string {
	var b strings.Builder
	if ver.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", ver.Epoch)
	}
	for i, n := range ver.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%d", n)
	}
	if ver.Pre != nil {
		fmt.Fprintf(&b, "%s%d", ver.Pre.L, ver.Pre.N)
	}
	if ver.Post != nil {
		fmt.Fprintf(&b, ".post%d", *ver.Post)
	}
	if ver.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *ver.Dev)
	}
	if len(ver.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range ver.Local {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.String())
		}
	}
	return b.String()
}

// Cmp compares two versions, returning <0, 0, or >0 the way sort.Interface
// comparators do.
func (ver Version) Cmp(other Version) int {
	if d := ver.Epoch - other.Epoch; d != 0 {
		return d
	}
	if d := cmpRelease(ver.Release, other.Release); d != 0 {
		return d
	}
	if d := cmpPre(ver.Pre, other.Pre); d != 0 {
		return d
	}
	if d := cmpIntPtr(ver.Post, other.Post, -1); d != 0 {
		return d
	}
	// dev releases sort *before* the release they precede, so a version
	// with no dev segment is "greater" than one with one.
	if d := cmpIntPtr(ver.Dev, other.Dev, 1); d != 0 {
		return d
	}
	return cmpLocal(ver.Local, other.Local)
}

func cmpRelease(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

// cmpPre orders pre-release segments a < b < rc < none: a plain release
// (1.0) is newer than any pre-release of it (1.0rc1). Post and dev segments
// are compared afterwards, by cmpIntPtr.
func cmpPre(a, b *PreRelease) int {
	rank := func(p *PreRelease) (int, int) {
		if p == nil {
			return 3, 0
		}
		switch p.L {
		case "a":
			return 0, p.N
		case "b":
			return 1, p.N
		default: // "rc"
			return 2, p.N
		}
	}
	aRank, aN := rank(a)
	bRank, bN := rank(b)
	if aRank != bRank {
		return aRank - bRank
	}
	return aN - bN
}

// cmpIntPtr compares optional integer segments (.postN / .devN). absentRank
// controls whether an absent segment sorts before (-1) or after (+1) a
// present one.
func cmpIntPtr(a, b *int, absentRank int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return absentRank
	case b == nil:
		return -absentRank
	default:
		return *a - *b
	}
}

func cmpLocal(a, b []intstr.IntOrString) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		switch {
		case i >= len(a):
			return -1
		case i >= len(b):
			return 1
		}
		if d := cmpLocalSegment(a[i], b[i]); d != 0 {
			return d
		}
	}
	return 0
}

// cmpLocalSegment compares one local-version segment. Per PEP 440, numeric
// segments sort higher than alphanumeric ones, and within a kind compare
// naturally.
func cmpLocalSegment(a, b intstr.IntOrString) int {
	aNum, bNum := a.Type == intstr.Int, b.Type == intstr.Int
	switch {
	case aNum && bNum:
		return a.IntValue() - b.IntValue()
	case aNum:
		return 1
	case bNum:
		return -1
	case a.StrVal < b.StrVal:
		return -1
	case a.StrVal > b.StrVal:
		return 1
	default:
		return 0
	}
}
