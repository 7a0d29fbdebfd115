package cliutil

import "strings"

// wrap greedily fills lines up to w-5 columns (leaving slop so a long word
// doesn't push a line over w), indenting every line after the first by i
// spaces. w <= 0 disables wrapping entirely.
func wrap(i, w int, s string) string {
	if w <= 0 {
		return s
	}
	width := w - 5
	if width < 1 {
		width = 1
	}
	indent := strings.Repeat(" ", i)

	var out strings.Builder
	first := true
	for _, paragraph := range strings.Split(s, "\n") {
		if !first {
			out.WriteByte('\n')
		}
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			first = false
			continue
		}
		lineLen := 0
		for j, word := range words {
			switch {
			case j == 0:
				if !first {
					out.WriteString(indent)
				}
				out.WriteString(word)
				lineLen = i + len(word)
			case lineLen+1+len(word) > width:
				out.WriteByte('\n')
				out.WriteString(indent)
				out.WriteString(word)
				lineLen = i + len(word)
			default:
				out.WriteByte(' ')
				out.WriteString(word)
				lineLen += 1 + len(word)
			}
		}
		first = false
	}
	return out.String()
}

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// Wrap the string `s` to a maximum width `w` with leading indent `i`.  The first line is not
// indented (this is assumed to be done by caller).  Pass `w` == 0 to do no wrapping
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}
