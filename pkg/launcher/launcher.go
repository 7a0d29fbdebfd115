// Package launcher builds platform-specific executable launchers for
// console and GUI entry points: POSIX shebang rewriting and Windows EXE
// assembly (stub + shebang + zipped __main__.py).
//
// Grounded on the teacher's pkg/python/pypa/bdist.rewritePython (POSIX
// shebang detection and rewrite) and pkg/python/pypa/entry_points
// (entry_points.txt parsing and __main__.py template), generalized from
// install-time hooks that mutate an in-memory filesystem into a
// standalone builder the install engine can call per entry point.
package launcher

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/go-python/wheelinstall/pkg/launcher/stubs"
	"github.com/go-python/wheelinstall/pkg/python"
)

// Section is which entry_points.txt section a Script came from.
type Section string

const (
	Console Section = "console"
	GUI     Section = "gui"
)

// Script is a specification of an entry-point launcher.
type Script struct {
	Name      string
	Module    string
	Attribute string
	Section   Section
}

// InvalidScript reports a malformed entry-point spec or an unavailable
// platform stub.
type InvalidScript struct {
	Name   string
	Reason string
}

func (e *InvalidScript) Error() string {
	return fmt.Sprintf("launcher: invalid script %q: %s", e.Name, e.Reason)
}

// pythonBasenames are the shebang interpreter tokens that qualify a script
// for rewrite, per the specification's shebang-detection rule. A trailing
// version suffix such as "3" or "3.9" is ignored when matching.
var pythonBasenames = map[string]bool{
	"python":  true,
	"pythonw": true,
}

// HasPythonShebang reports whether the first line of content is a shebang
// whose final whitespace-separated token names a Python interpreter (or,
// case-insensitively, exeBasename -- the current executable's basename,
// which callers pass in so this package need not know its own identity).
func HasPythonShebang(content []byte, exeBasename string) bool {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return false
	}
	line, _, _ := bytes.Cut(content, []byte("\n"))
	line = bytes.TrimRight(line, "\r")
	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	base := last
	if idx := strings.LastIndexAny(last, `/\`); idx >= 0 {
		base = last[idx+1:]
	}
	if pythonBasenames[strings.TrimRight(strings.ToLower(base), "0123456789.")] {
		return true
	}
	return exeBasename != "" && strings.EqualFold(base, exeBasename)
}

// RewritePOSIX rewrites content's first line (a `#!...` shebang qualified
// by HasPythonShebang) to invoke interpreter instead, preserving any
// flags that followed the original interpreter token. If interpreter
// contains whitespace, the result is wrapped in the standard POSIX
// `'''exec'` trampoline so the file is valid to both /bin/sh and Python.
func RewritePOSIX(content []byte, interpreter string) ([]byte, error) {
	firstLine, rest, ok := bytes.Cut(content, []byte("\n"))
	if !ok {
		rest = nil
	}
	firstLine = bytes.TrimRight(firstLine, "\r")
	fields := strings.Fields(string(firstLine[2:]))
	if len(fields) == 0 {
		return nil, fmt.Errorf("launcher.RewritePOSIX: empty shebang line")
	}
	flags := fields[1:]
	for i, field := range fields {
		if HasPythonShebang([]byte("#!"+field), "") {
			flags = fields[i+1:]
			break
		}
	}

	var newShebang string
	if strings.ContainsAny(interpreter, " \t") {
		var b strings.Builder
		fmt.Fprintf(&b, "#!/bin/sh\n'''exec' %s %s \"$0\" \"$@\"\n' '''\n",
			shellQuote(interpreter), strings.Join(flags, " "))
		return append([]byte(b.String()), rest...), nil
	}

	parts := append([]string{interpreter}, flags...)
	newShebang = "#!" + strings.Join(parts, " ")
	var out bytes.Buffer
	out.WriteString(newShebang)
	out.WriteByte('\n')
	out.Write(rest)
	return out.Bytes(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// stubName returns the {t,w}{32,64,64-arm} stub name for section and arch
// (one of "32", "64", "64-arm", as returned by pep425.ArchFromPlatformTag),
// and whether stubs.ByName holds a stub of that name. An empty arch yields
// ("", false).
func stubName(section Section, arch string) (string, bool) {
	if arch == "" {
		return "", false
	}
	prefix := "t"
	if section == GUI {
		prefix = "w"
	}
	name := prefix + arch
	_, ok := stubs.ByName[name]
	return name, ok
}

// BuildWindowsEXE assembles a Windows launcher EXE: stub ∥ CRLF-terminated
// shebang ∥ ZIP(__main__.py). arch is one of "32", "64", "64-arm" (see
// pep425.ArchFromPlatformTag).
func BuildWindowsEXE(script Script, arch, interpreter string) ([]byte, error) {
	name, ok := stubName(script.Section, arch)
	if !ok {
		return nil, &InvalidScript{Name: script.Name, Reason: fmt.Sprintf("no launcher stub for architecture %q", arch)}
	}
	stub := stubs.ByName[name]

	mainPy, err := renderMain(script)
	if err != nil {
		return nil, &InvalidScript{Name: script.Name, Reason: err.Error()}
	}

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	fw, err := zw.Create("__main__.py")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(mainPy); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(stub)
	out.WriteString("#!" + interpreter + "\r\n")
	out.Write(zipBuf.Bytes())
	return out.Bytes(), nil
}

var mainTmpl = template.Must(template.New("__main__.py").Parse(
	`import sys
import {{ .Module }}
sys.exit({{ .Module }}.{{ .Attribute }}())
`))

func renderMain(script Script) ([]byte, error) {
	var buf bytes.Buffer
	if err := mainTmpl.Execute(&buf, script); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPOSIXScript renders the plain-text POSIX script body for script:
// the same shebang-then-import-and-invoke shape as BuildWindowsEXE's
// __main__.py, but as the literal script file content (no stub, no ZIP).
func BuildPOSIXScript(script Script, interpreter string) ([]byte, error) {
	body, err := renderMain(script)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteString("#!" + interpreter + "\n")
	out.Write(body)
	return out.Bytes(), nil
}

// ParseEntryPoints parses entry_points.txt (INI syntax) and returns the
// console_scripts and gui_scripts sections as Scripts, validating
// module:attr syntax and rejecting duplicate names within a section.
//
// distinguishesGUIScripts reports whether the target platform gives
// gui_scripts a distinct launcher from console_scripts (true on
// Windows, false on POSIX, where gui_scripts are installed exactly
// like console_scripts). When false, a name declared in both sections
// is a hard error, per the specification's entry-point collision
// rule -- on a platform that can't tell the two apart, such a wheel
// would otherwise silently produce two Scripts destined for the same
// installed script path.
func ParseEntryPoints(r io.Reader, distinguishesGUIScripts bool) ([]Script, error) {
	sections, err := parseINI(r)
	if err != nil {
		return nil, err
	}

	if !distinguishesGUIScripts {
		for name := range sections["console_scripts"] {
			if _, ok := sections["gui_scripts"][name]; ok {
				return nil, &InvalidScript{Name: name, Reason: "declared in both console_scripts and gui_scripts, but the target platform does not distinguish them"}
			}
		}
	}

	var scripts []Script
	for _, sk := range []struct {
		section string
		kind    Section
	}{
		{"console_scripts", Console},
		{"gui_scripts", GUI},
	} {
		section, kind := sk.section, sk.kind
		names := make([]string, 0, len(sections[section]))
		for name := range sections[section] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ref := sections[section][name]
			module, attr, ok := strings.Cut(ref, ":")
			if !ok || module == "" || attr == "" {
				return nil, &InvalidScript{Name: name, Reason: fmt.Sprintf("malformed entry point reference: %q", ref)}
			}
			scripts = append(scripts, Script{
				Name:      name,
				Module:    strings.TrimSpace(module),
				Attribute: strings.TrimSpace(attr),
				Section:   kind,
			})
		}
	}
	return scripts, nil
}

// parseINI reads entry_points.txt with the teacher's own configparser
// port, which already implements the strict-by-default,
// duplicate-rejecting INI dialect entry_points.txt is written in. The
// default OptionTransform (lowercasing, matching Python's configparser)
// is overridden to preserve case, since entry point names are
// case-sensitive script names, not configuration keys.
func parseINI(r io.Reader) (map[string]map[string]string, error) {
	parser := python.NewConfigParser()
	parser.OptionTransform = func(s string) string { return s }
	cfg, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]map[string]string, len(cfg))
	for name, section := range cfg {
		sections[name] = section
	}
	return sections, nil
}
