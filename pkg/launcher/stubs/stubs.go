// Package stubs embeds the precompiled Windows launcher stub executables
// that pkg/launcher concatenates a shebang and a zipped __main__.py onto.
//
// Real distlib-style stub binaries are fetched at release time rather than
// hand-written (see the teacher's own PyPA reference material, whose
// tools/update_launchers.py downloads them from PyPI's "distlib" project
// immediately before a release, and does not vendor sources for them
// either). No network access is available to build these placeholders, so
// each embedded stub here is not a functioning PE binary: it is a short,
// recognizable marker payload of the right shape (a magic header naming
// the architecture it stands in for), sized like a minimal stub, so that
// callers exercising the concatenation and byte-layout logic in
// pkg/launcher can do so deterministically. Replacing the contents of this
// directory with genuine distlib stub binaries requires no code change
// elsewhere in this package.
package stubs

import _ "embed"

//go:embed t32.exe
var T32 []byte

//go:embed t64.exe
var T64 []byte

//go:embed t64-arm.exe
var T64Arm []byte

//go:embed w32.exe
var W32 []byte

//go:embed w64.exe
var W64 []byte

//go:embed w64-arm.exe
var W64Arm []byte

// ByName maps a stub's launcher.go arch/section-derived filename (without
// extension) to its embedded bytes.
var ByName = map[string][]byte{
	"t32":     T32,
	"t64":     T64,
	"t64-arm": T64Arm,
	"w32":     W32,
	"w64":     W64,
	"w64-arm": W64Arm,
}
