package compiler

import (
	"context"
	"os"
	"path/filepath"
)

// Host is the compiler's view of the filesystem. Emit reads every root
// through ReadFile and hands each output file to WriteFile together with its
// own context; a non-nil error from WriteFile aborts the emit.
type Host interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, contents []byte) error
}

// FSHost reads and writes relative to a working directory. Writes are
// synchronous.
type FSHost struct {
	workDir string
}

// NewHost returns a Host rooted at workDir.
func NewHost(workDir string) *FSHost {
	return &FSHost{workDir: workDir}
}

func (h *FSHost) path(name string) string {
	p := filepath.FromSlash(name)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(h.workDir, p)
}

// ReadFile reads name relative to the working directory.
func (h *FSHost) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(h.path(name))
}

// WriteFile writes contents to name, creating parent directories.
func (h *FSHost) WriteFile(ctx context.Context, name string, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := h.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	// #nosec G306 -- build outputs are meant to be world-readable
	return os.WriteFile(p, contents, 0o644)
}
