// Package format defines the fixed set of module formats dualbuild emits.
//
// Each Format is a tagged value carrying everything the compile and rewrite
// stages need to know: the compiler module kind, whether declarations are
// produced, the output extension, and the compatibility shim (if any).
package format

import (
	"strings"
)

// DeclarationSuffix marks type-declaration files. Declarations keep this
// extension regardless of format.
const DeclarationSuffix = ".d.ts"

// jsExtension is the extension the compiler gives JavaScript outputs.
const jsExtension = ".js"

// LegacyShim aliases module.exports and module.exports.default to the module's
// default export for loaders that do not understand default exports.
const LegacyShim = "module.exports = module.exports.default;\n" +
	"module.exports.default = module.exports;\n"

// Format describes one output module format.
type Format struct {
	// Name is the short identifier used in logs and metrics ("cjs", "esm").
	Name string
	// ModuleKind is the compiler's "module" option value for this format.
	ModuleKind string
	// Declarations reports whether this format emits .d.ts files.
	Declarations bool
	// Extension replaces ".js" on emitted JavaScript files.
	Extension string
	// Shim is appended to emitted JavaScript files; empty for none.
	Shim string
}

// Legacy is the backwards-compatible CommonJS format.
var Legacy = Format{
	Name:         "cjs",
	ModuleKind:   "commonjs",
	Declarations: false,
	Extension:    ".cjs",
	Shim:         LegacyShim,
}

// Modern is the ES module format; it also carries the type declarations.
var Modern = Format{
	Name:         "esm",
	ModuleKind:   "es2020",
	Declarations: true,
	Extension:    ".mjs",
}

// All returns the formats in the order a build compiles them.
func All() []Format {
	return []Format{Legacy, Modern}
}

// Lookup returns the registered format with the given name.
func Lookup(name string) (Format, bool) {
	for _, f := range All() {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// Valid reports whether f is one of the registered formats.
func (f Format) Valid() bool {
	registered, ok := Lookup(f.Name)
	return ok && registered == f
}

// Overrides returns the compiler options this format forces over the base
// configuration. Declaration emission is always set explicitly so that only
// formats that own the declarations produce them.
func (f Format) Overrides() map[string]any {
	return map[string]any{
		"module":      f.ModuleKind,
		"declaration": f.Declarations,
	}
}

// IsDeclaration reports whether name is a type-declaration file.
func IsDeclaration(name string) bool {
	return strings.HasSuffix(name, DeclarationSuffix)
}

// Rename swaps a trailing ".js" for the format's extension. Other names are
// returned unchanged.
func (f Format) Rename(name string) string {
	if !strings.HasSuffix(name, jsExtension) {
		return name
	}
	return strings.TrimSuffix(name, jsExtension) + f.Extension
}

// Apply returns contents with the format's shim appended. The shim always
// starts on its own line.
func (f Format) Apply(contents []byte) []byte {
	if f.Shim == "" {
		return contents
	}
	out := make([]byte, 0, len(contents)+len(f.Shim)+1)
	out = append(out, contents...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return append(out, f.Shim...)
}

func (f Format) String() string {
	return f.Name
}
