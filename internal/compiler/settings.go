package compiler

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/dualbuild/internal/tsconfig"
)

// settings is the esbuild-facing translation of a compiler options mapping.
type settings struct {
	format          api.Format
	target          api.Target
	jsx             api.JSX
	jsxDev          bool
	jsxFactory      string
	jsxFragment     string
	jsxImportSource string
	tsconfigRaw     string
	declaration     bool
	declarationOnly bool
	outDir          string
	rootDir         string
	declarationDir  string
	moduleKind      string
}

var moduleFormats = map[string]api.Format{
	"commonjs": api.FormatCommonJS,
	"es2015":   api.FormatESModule,
	"es6":      api.FormatESModule,
	"es2020":   api.FormatESModule,
	"es2022":   api.FormatESModule,
	"esnext":   api.FormatESModule,
	"node16":   api.FormatESModule,
	"nodenext": api.FormatESModule,
	"preserve": api.FormatESModule,
}

var targets = map[string]api.Target{
	"es3":    api.ES5,
	"es5":    api.ES5,
	"es6":    api.ES2015,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ESNext,
	"es2024": api.ESNext,
	"esnext": api.ESNext,
}

func newSettings(opts tsconfig.Options, firstRoot string) (settings, error) {
	s := settings{
		format: api.FormatESModule,
		target: api.ESNext,
	}

	if kind, ok := opts.String("module"); ok {
		f, known := moduleFormats[strings.ToLower(kind)]
		if !known {
			return s, fmt.Errorf("unsupported module kind %q", kind)
		}
		s.format = f
		s.moduleKind = strings.ToLower(kind)
	}
	if t, ok := opts.String("target"); ok {
		target, known := targets[strings.ToLower(t)]
		if !known {
			return s, fmt.Errorf("unsupported target %q", t)
		}
		s.target = target
	}

	if mode, ok := opts.String("jsx"); ok {
		switch strings.ToLower(mode) {
		case "react":
			s.jsx = api.JSXTransform
		case "react-jsx":
			s.jsx = api.JSXAutomatic
		case "react-jsxdev":
			s.jsx = api.JSXAutomatic
			s.jsxDev = true
		case "preserve", "react-native":
			s.jsx = api.JSXPreserve
		default:
			return s, fmt.Errorf("unsupported jsx mode %q", mode)
		}
	}
	s.jsxFactory, _ = opts.String("jsxFactory")
	s.jsxFragment, _ = opts.String("jsxFragmentFactory")
	s.jsxImportSource, _ = opts.String("jsxImportSource")

	s.declaration = opts.Bool("declaration")
	s.declarationOnly = opts.Bool("emitDeclarationOnly")

	s.rootDir = path.Dir(firstRoot)
	if dir, ok := opts.String("rootDir"); ok && dir != "" {
		s.rootDir = path.Clean(dir)
	}
	s.outDir = s.rootDir
	if dir, ok := opts.String("outDir"); ok && dir != "" {
		s.outDir = path.Clean(dir)
	}
	s.declarationDir = s.outDir
	if dir, ok := opts.String("declarationDir"); ok && dir != "" {
		s.declarationDir = path.Clean(dir)
	}

	raw, err := json.Marshal(map[string]any{"compilerOptions": opts})
	if err != nil {
		return s, fmt.Errorf("encode compiler options: %w", err)
	}
	s.tsconfigRaw = string(raw)
	return s, nil
}

// loaderFor picks the esbuild loader from the root's extension.
func loaderFor(name string) api.Loader {
	switch strings.ToLower(path.Ext(name)) {
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS
	default:
		return api.LoaderTS
	}
}

// outputName maps a root to its emitted name under dir with the given
// extension, keeping its position relative to rootDir.
func (s settings) outputName(root, dir, ext string) (string, error) {
	rel := root
	if s.rootDir != "." {
		prefix := s.rootDir + "/"
		if !strings.HasPrefix(root, prefix) {
			return "", fmt.Errorf("file %q is not under rootDir %q", root, s.rootDir)
		}
		rel = strings.TrimPrefix(root, prefix)
	}
	base := strings.TrimSuffix(rel, path.Ext(rel))
	return path.Join(dir, base+ext), nil
}

func (s settings) transformOptions(root string) api.TransformOptions {
	return api.TransformOptions{
		Sourcefile:      root,
		Loader:          loaderFor(root),
		Format:          s.format,
		Target:          s.target,
		TsconfigRaw:     s.tsconfigRaw,
		JSX:             s.jsx,
		JSXDev:          s.jsxDev,
		JSXFactory:      s.jsxFactory,
		JSXFragment:     s.jsxFragment,
		JSXImportSource: s.jsxImportSource,
	}
}
