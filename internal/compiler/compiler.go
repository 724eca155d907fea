// Package compiler turns TypeScript roots into JavaScript and declaration
// files.
//
// JavaScript comes from esbuild's Transform API; declarations come from
// internal/dts. Output names follow tsc's layout (outDir + path relative to
// rootDir) so hosts that rewrite paths see the names they expect.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/dualbuild/internal/dts"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
	"git.home.luguber.info/inful/dualbuild/internal/observability"
	"git.home.luguber.info/inful/dualbuild/internal/tsconfig"
)

// Program is a set of root files bound to one merged options mapping.
type Program struct {
	roots    []string
	options  tsconfig.Options
	settings settings
	host     Host
}

// EmitResult lists what one Emit produced.
type EmitResult struct {
	// Emitted holds every name passed to Host.WriteFile, in order.
	Emitted []string
	// Warnings holds formatted compiler warnings.
	Warnings []string
	Duration time.Duration
}

// NewProgram validates opts and binds them to roots. Roots are slash paths
// relative to the host's working directory.
func NewProgram(roots []string, opts tsconfig.Options, host Host) (*Program, error) {
	if len(roots) == 0 {
		return nil, ferrors.CompilerError("program has no root files").Build()
	}
	if host == nil {
		return nil, ferrors.InternalError("program has no compiler host").Build()
	}
	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = path.Clean(filepath.ToSlash(r))
	}
	s, err := newSettings(opts, cleaned[0])
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid compiler options").
			Fatal().WithContext("entry", cleaned[0]).Build()
	}
	return &Program{roots: cleaned, options: opts.Clone(), settings: s, host: host}, nil
}

// Options returns a copy of the program's options.
func (p *Program) Options() tsconfig.Options {
	return p.options.Clone()
}

// Emit compiles every root and passes each output file to the host. It stops
// at the first error diagnostic, unreadable root, or failed host write.
func (p *Program) Emit(ctx context.Context) (*EmitResult, error) {
	start := time.Now()
	res := &EmitResult{}
	for _, root := range p.roots {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.emitRoot(ctx, root, res); err != nil {
			return res, err
		}
	}
	res.Duration = time.Since(start)
	observability.DebugContext(ctx, "Emit complete",
		slog.String("module", p.settings.moduleKind),
		slog.Int("files", len(res.Emitted)),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

func (p *Program) emitRoot(ctx context.Context, root string, res *EmitResult) error {
	src, err := p.host.ReadFile(root)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCompiler, "read source file").
			Fatal().WithContext("path", root).Build()
	}

	if !p.settings.declarationOnly {
		name, err := p.settings.outputName(root, p.settings.outDir, ".js")
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "resolve output name").Fatal().Build()
		}
		out := api.Transform(string(src), p.settings.transformOptions(root))
		if len(out.Warnings) > 0 {
			for _, w := range api.FormatMessages(out.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
				w = strings.TrimSpace(w)
				res.Warnings = append(res.Warnings, w)
				observability.WarnContext(ctx, "Compiler warning", logfields.Entry(root), slog.String("diagnostic", w))
			}
		}
		if len(out.Errors) > 0 {
			msgs := api.FormatMessages(out.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
			diag := strings.TrimSpace(strings.Join(msgs, ""))
			return ferrors.WrapError(errors.New(diag), ferrors.CategoryCompiler, "compilation failed").
				Fatal().
				WithContext("path", root).
				WithContext("diagnostics", diag).
				Build()
		}
		if err := p.write(ctx, name, out.Code, res); err != nil {
			return err
		}
	}

	if p.settings.declaration {
		name, err := p.settings.outputName(root, p.settings.declarationDir, ".d.ts")
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "resolve declaration name").Fatal().Build()
		}
		decl, err := dts.Emit(ctx, root, src)
		if err != nil {
			var perr *dts.ParseError
			if errors.As(err, &perr) {
				return ferrors.WrapError(err, ferrors.CategoryCompiler, "declaration emit failed").
					Fatal().WithContext("path", root).WithContext("line", perr.Line).Build()
			}
			return ferrors.WrapError(err, ferrors.CategoryCompiler, "declaration emit failed").
				Fatal().WithContext("path", root).Build()
		}
		if err := p.write(ctx, name, decl, res); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) write(ctx context.Context, name string, contents []byte, res *EmitResult) error {
	if err := p.host.WriteFile(ctx, name, contents); err != nil {
		if ferrors.IsClassified(err) {
			return err
		}
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output file").
			Fatal().WithContext("path", name).Build()
	}
	res.Emitted = append(res.Emitted, name)
	return nil
}

// Compile merges base with override (override wins), builds a Program for
// roots and emits it through host.
func Compile(ctx context.Context, roots []string, base, override tsconfig.Options, host Host) (*EmitResult, error) {
	prog, err := NewProgram(roots, base.Merge(override), host)
	if err != nil {
		return nil, err
	}
	return prog.Emit(ctx)
}
