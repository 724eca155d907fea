// Package emit persists compiler output for one build.
//
// A Rewriter sits between the compiler and the disk for one module format: it
// flattens each emitted path into the output directory, swaps the extension
// and appends the format's shim. The shared Writer performs the actual writes
// in the background and joins them when the build ends.
package emit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
	"git.home.luguber.info/inful/dualbuild/internal/metrics"
	"git.home.luguber.info/inful/dualbuild/internal/observability"
)

// Meta describes where a dispatched file came from.
type Meta struct {
	Format      string
	Declaration bool
	// Source is the name the compiler emitted, before rewriting.
	Source string
}

// Kind returns the metrics label for the file.
func (m Meta) Kind() string {
	if m.Declaration {
		return metrics.KindDeclaration
	}
	return metrics.KindJavaScript
}

// Result records the outcome of one persisted file.
type Result struct {
	Path        string
	Format      string
	Declaration bool
	Bytes       int
	Err         error
}

// OK reports whether the write succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// WriteFunc persists contents at path.
type WriteFunc func(path string, contents []byte) error

// Writer runs writes in the background. Every dispatched write is joined by
// Wait; a failing write never cancels the others.
type Writer struct {
	group    errgroup.Group
	mu       sync.Mutex
	results  []*Result
	owners   map[string]Meta
	consMu   sync.Mutex
	console  io.Writer
	write    WriteFunc
	recorder metrics.Recorder
}

// Option configures a Writer.
type Option func(*Writer)

// WithConsole sets where "Built <path>" notices are printed. Defaults to os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(wr *Writer) { wr.console = w }
}

// WithConcurrency bounds the number of writes in flight. n <= 0 means no limit.
func WithConcurrency(n int) Option {
	return func(wr *Writer) {
		if n > 0 {
			wr.group.SetLimit(n)
		}
	}
}

// WithWriteFunc replaces the function that touches the disk.
func WithWriteFunc(fn WriteFunc) Option {
	return func(wr *Writer) { wr.write = fn }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(wr *Writer) {
		if r != nil {
			wr.recorder = r
		}
	}
}

// NewWriter creates a Writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		owners:   map[string]Meta{},
		console:  os.Stdout,
		write:    writeFile,
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func writeFile(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	// #nosec G306 -- build outputs are meant to be world-readable
	return os.WriteFile(path, contents, 0o644)
}

// Dispatch starts writing contents to path and returns without waiting for
// the write. It fails only when path was already claimed by an earlier
// dispatch of this Writer.
func (w *Writer) Dispatch(ctx context.Context, path string, contents []byte, meta Meta) error {
	res := &Result{Path: path, Format: meta.Format, Declaration: meta.Declaration, Bytes: len(contents)}

	w.mu.Lock()
	if prev, taken := w.owners[path]; taken {
		w.mu.Unlock()
		return ferrors.ConfigError("output path collision").
			WithContext("path", path).
			WithContext("first", prev.Source).
			WithContext("second", meta.Source).
			Build()
	}
	w.owners[path] = meta
	w.results = append(w.results, res)
	w.mu.Unlock()

	w.group.Go(func() error {
		if err := w.write(path, contents); err != nil {
			res.Err = fmt.Errorf("write %s: %w", path, err)
			w.recorder.IncWriteFailure(meta.Format)
			observability.ErrorContext(ctx, "Failed to write output file",
				logfields.Path(path), logfields.Kind(meta.Kind()), logfields.Error(err))
			return nil
		}
		w.recorder.IncFileWritten(meta.Format, meta.Kind())
		w.consMu.Lock()
		_, _ = fmt.Fprintf(w.console, "Built %s\n", path)
		w.consMu.Unlock()
		return nil
	})
	return nil
}

// Wait blocks until every dispatched write has finished and returns their
// results in dispatch order.
func (w *Writer) Wait() []Result {
	_ = w.group.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Result, len(w.results))
	for i, r := range w.results {
		out[i] = *r
	}
	return out
}
