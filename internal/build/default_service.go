package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/dualbuild/internal/compiler"
	"git.home.luguber.info/inful/dualbuild/internal/emit"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/format"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
	"git.home.luguber.info/inful/dualbuild/internal/metrics"
	"git.home.luguber.info/inful/dualbuild/internal/observability"
	"git.home.luguber.info/inful/dualbuild/internal/outdir"
	"git.home.luguber.info/inful/dualbuild/internal/revision"
	"git.home.luguber.info/inful/dualbuild/internal/tsconfig"
)

// RevisionResolver looks up the source revision for a working directory.
type RevisionResolver func(dir string) (revision.Info, error)

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	// Optional dependencies that can be injected
	preparerFactory func(workDir string) *outdir.Preparer
	resolveRevision RevisionResolver
	newID           func() string
	console         io.Writer
	writeFunc       emit.WriteFunc
	recorder        metrics.Recorder
}

// NewService creates a new DefaultService with default dependencies.
func NewService() *DefaultService {
	return &DefaultService{
		preparerFactory: outdir.NewPreparer,
		resolveRevision: revision.Resolve,
		newID:           uuid.NewString,
		console:         os.Stdout,
		recorder:        metrics.NoopRecorder{},
	}
}

// WithPreparerFactory allows injecting a custom output preparer (for testing).
func (s *DefaultService) WithPreparerFactory(factory func(workDir string) *outdir.Preparer) *DefaultService {
	s.preparerFactory = factory
	return s
}

// WithRevisionResolver replaces the git revision lookup.
func (s *DefaultService) WithRevisionResolver(r RevisionResolver) *DefaultService {
	s.resolveRevision = r
	return s
}

// WithIDGenerator replaces the build id generator.
func (s *DefaultService) WithIDGenerator(fn func() string) *DefaultService {
	s.newID = fn
	return s
}

// WithConsole sets where "Built <path>" notices are printed.
func (s *DefaultService) WithConsole(w io.Writer) *DefaultService {
	s.console = w
	return s
}

// WithWriteFunc replaces the function that persists output files (for testing).
func (s *DefaultService) WithWriteFunc(fn emit.WriteFunc) *DefaultService {
	s.writeFunc = fn
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r != nil {
		s.recorder = r
	}
	return s
}

func (req Request) withDefaults() (Request, error) {
	if req.WorkDir == "" {
		req.WorkDir = "."
	}
	work, err := filepath.Abs(req.WorkDir)
	if err != nil {
		return req, ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve working directory").
			Fatal().WithContext("path", req.WorkDir).Build()
	}
	req.WorkDir = work
	if req.TSConfig == "" {
		req.TSConfig = tsconfig.DefaultName
	}
	if req.Entry == "" {
		req.Entry = DefaultEntry
	}
	if filepath.IsAbs(req.Entry) {
		rel, err := filepath.Rel(work, req.Entry)
		if err != nil {
			return req, ferrors.ValidationError("entry must be inside the working directory").
				WithContext("entry", req.Entry).Build()
		}
		req.Entry = rel
	}
	req.Entry = filepath.ToSlash(filepath.Clean(req.Entry))
	if req.OutputDir == "" {
		req.OutputDir = DefaultOutputDir
	}
	return req, nil
}

// Run executes the complete build pipeline.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()
	result := &Result{StartTime: startTime, BuildID: s.newID()}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	finish := func(status Status, err error) (*Result, error) {
		result.Status = status
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		s.recorder.IncBuildOutcome(string(status))
		s.recorder.ObserveBuildDuration(result.Duration)
		attrs := []slog.Attr{
			slog.String("status", string(status)),
			slog.Int("written", result.FilesWritten),
			slog.Int("failed", result.WriteFailures),
			logfields.DurationMS(float64(result.Duration.Microseconds()) / 1000),
		}
		if err != nil {
			observability.ErrorContext(ctx, "Build failed", append(attrs, logfields.Error(err))...)
		} else {
			observability.InfoContext(ctx, "Build finished", attrs...)
		}
		return result, err
	}

	req, err := req.withDefaults()
	if err != nil {
		return finish(StatusFailed, err)
	}

	if info, err := s.resolveRevision(req.WorkDir); err != nil {
		observability.WarnContext(ctx, "Could not resolve source revision", logfields.Error(err))
	} else {
		result.Revision = info.Short()
	}
	observability.InfoContext(ctx, "Starting build",
		logfields.Entry(req.Entry), logfields.Path(req.WorkDir), logfields.Revision(result.Revision))

	if err := ctx.Err(); err != nil {
		return finish(StatusCancelled, err)
	}

	// Stage 1: reset output directory
	stageStart := time.Now()
	ctx = observability.WithStage(ctx, "prepare")
	out, err := s.preparerFactory(req.WorkDir).Reset(req.OutputDir)
	if err != nil {
		return finish(StatusFailed, err)
	}
	result.OutputDir = out
	s.recorder.ObserveStageDuration("prepare", time.Since(stageStart))

	// Stage 2: load compiler configuration
	stageStart = time.Now()
	ctx = observability.WithStage(ctx, "load")
	cfg, err := tsconfig.Load(req.WorkDir, req.TSConfig)
	if err != nil {
		return finish(StatusFailed, err)
	}
	observability.DebugContext(ctx, "Compiler configuration loaded",
		logfields.Path(cfg.Path), slog.Int("options", len(cfg.CompilerOptions)))
	s.recorder.ObserveStageDuration("load", time.Since(stageStart))

	// Stage 3: compile each format; writes run in the background
	writerOpts := []emit.Option{
		emit.WithConsole(s.console),
		emit.WithConcurrency(req.WriteConcurrency),
		emit.WithRecorder(s.recorder),
	}
	if s.writeFunc != nil {
		writerOpts = append(writerOpts, emit.WithWriteFunc(s.writeFunc))
	}
	writer := emit.NewWriter(writerOpts...)
	host := compiler.NewHost(req.WorkDir)

	stageStart = time.Now()
	ctx = observability.WithStage(ctx, "compile")
	for _, f := range format.All() {
		if err := ctx.Err(); err != nil {
			s.join(result, writer)
			return finish(StatusCancelled, err)
		}
		fctx := observability.WithFormat(ctx, f.Name)
		emitted, err := s.compile(fctx, f, req, cfg, host, writer, out)
		if err != nil {
			s.join(result, writer)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return finish(StatusCancelled, err)
			}
			return finish(StatusFailed, err)
		}
		result.Warnings = append(result.Warnings, emitted.Warnings...)
	}
	s.recorder.ObserveStageDuration("compile", time.Since(stageStart))

	// Stage 4: join writes
	stageStart = time.Now()
	ctx = observability.WithStage(ctx, "write")
	s.join(result, writer)
	s.recorder.ObserveStageDuration("write", time.Since(stageStart))

	if result.WriteFailures == 0 {
		return finish(StatusSuccess, nil)
	}
	for _, w := range result.Failed() {
		observability.WarnContext(ctx, "Output file not written", logfields.Path(w.Path), logfields.Error(w.Err))
	}
	if req.StrictWrites {
		return finish(StatusFailed, ferrors.BuildError("some output files could not be written").
			WithContext("failed", result.WriteFailures).
			WithContext("output_dir", out).
			Build())
	}
	return finish(StatusDegraded, nil)
}

func (s *DefaultService) compile(ctx context.Context, f format.Format, req Request, cfg *tsconfig.Config,
	host compiler.Host, writer *emit.Writer, out string,
) (*compiler.EmitResult, error) {
	start := time.Now()
	rw, err := emit.NewRewriter(f, out, host, writer)
	if err != nil {
		return nil, err
	}
	observability.InfoContext(ctx, "Compiling", logfields.Entry(req.Entry))
	res, err := compiler.Compile(ctx, []string{req.Entry}, cfg.CompilerOptions, f.Overrides(), rw)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveCompileDuration(f.Name, time.Since(start))
	return res, nil
}

// join waits for every dispatched write and records the totals.
func (s *DefaultService) join(result *Result, writer *emit.Writer) {
	result.Writes = writer.Wait()
	result.FilesWritten, result.WriteFailures = 0, 0
	for _, w := range result.Writes {
		if w.OK() {
			result.FilesWritten++
		} else {
			result.WriteFailures++
		}
	}
}
