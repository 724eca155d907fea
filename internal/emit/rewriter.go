package emit

import (
	"context"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/dualbuild/internal/compiler"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/format"
)

// Rewriter is the compiler.Host for one format. Reads go to the wrapped host;
// writes are rewritten and dispatched to the Writer.
type Rewriter struct {
	format format.Format
	outDir string
	reader compiler.Host
	writer *Writer
}

var _ compiler.Host = (*Rewriter)(nil)

// NewRewriter binds f, the output directory and the shared writer. An unknown
// format is a configuration error.
func NewRewriter(f format.Format, outDir string, reader compiler.Host, w *Writer) (*Rewriter, error) {
	if !f.Valid() {
		return nil, ferrors.ConfigError("unknown output format").
			WithContext("format", f.Name).Build()
	}
	if reader == nil || w == nil {
		return nil, ferrors.InternalError("rewriter needs a reader and a writer").Build()
	}
	return &Rewriter{format: f, outDir: outDir, reader: reader, writer: w}, nil
}

// ReadFile delegates to the wrapped host.
func (r *Rewriter) ReadFile(name string) ([]byte, error) {
	return r.reader.ReadFile(name)
}

// WriteFile rewrites name and contents for the bound format and dispatches
// the write under ctx. It returns before the file is on disk.
func (r *Rewriter) WriteFile(ctx context.Context, name string, contents []byte) error {
	decl := format.IsDeclaration(name)
	target := r.Target(name)
	if !decl {
		contents = r.format.Apply(contents)
	}
	return r.writer.Dispatch(ctx, target, contents, Meta{
		Format:      r.format.Name,
		Declaration: decl,
		Source:      name,
	})
}

// Target returns the final path for an emitted name.
func (r *Rewriter) Target(name string) string {
	flat := Flatten(name)
	if !format.IsDeclaration(name) {
		flat = r.format.Rename(flat)
	}
	return filepath.Join(r.outDir, flat)
}

// Flatten drops the leading path segment of name and everything between it
// and the base name. A single-segment name is returned unchanged.
func Flatten(name string) string {
	p := filepath.Clean(filepath.FromSlash(name))
	if !strings.ContainsRune(p, filepath.Separator) {
		return p
	}
	return filepath.Base(p)
}
