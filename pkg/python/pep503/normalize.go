// Package pep503 implements the project name normalization rule from
// PEP 503 -- Simple Repository API.
//
// https://www.python.org/dev/peps/pep-0503/
//
// The Simple Repository API itself is an HTTP index-browsing protocol used
// during dependency resolution, which happens before a wheel ever reaches
// an installer; only the name-normalization rule it defines survives here,
// because a wheel installer must normalize the project name embedded in a
// wheel filename to build the ``.dist-info`` directory name and to compare
// it against the name given by the caller.
package pep503

import (
	"regexp"
	"strings"
)

var reSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName implements the normalization algorithm from PEP 503:
// lowercase the name, then collapse any run of "-", "_", or "." into a
// single "-".
func NormalizeName(name string) string {
	return reSeparators.ReplaceAllString(strings.ToLower(name), "-")
}
