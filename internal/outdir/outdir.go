package outdir

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
)

// Preparer resets output directories relative to a working directory.
type Preparer struct {
	workDir   string
	removeAll func(string) error
	mkdirAll  func(string, os.FileMode) error
}

// NewPreparer creates a Preparer rooted at workDir.
func NewPreparer(workDir string) *Preparer {
	return &Preparer{
		workDir:   workDir,
		removeAll: os.RemoveAll,
		mkdirAll:  os.MkdirAll,
	}
}

// Resolve returns the absolute output path for dir and rejects targets whose
// removal would destroy the project: the filesystem root, the working
// directory, or any of its ancestors.
func (p *Preparer) Resolve(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", ferrors.ValidationError("output directory must not be empty").Build()
	}
	work, err := filepath.Abs(p.workDir)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve working directory").
			Fatal().WithContext("path", p.workDir).Build()
	}
	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(work, target)
	}
	target = filepath.Clean(target)

	if filepath.Dir(target) == target {
		return "", ferrors.ValidationError("refusing to reset filesystem root").
			WithContext("path", target).Build()
	}
	if target == work || strings.HasPrefix(work, target+string(filepath.Separator)) {
		return "", ferrors.ValidationError("refusing to reset the working directory or one of its parents").
			WithContext("path", target).WithContext("workdir", work).Build()
	}
	return target, nil
}

// Remove deletes dir and everything below it. A missing directory is success.
func (p *Preparer) Remove(dir string) (string, error) {
	target, err := p.Resolve(dir)
	if err != nil {
		return "", err
	}
	if err := p.removeAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove output directory").
			Fatal().WithContext("path", target).Build()
	}
	slog.Debug("Removed output directory", logfields.Path(target))
	return target, nil
}

// Reset removes dir and recreates it empty. It returns the absolute path.
func (p *Preparer) Reset(dir string) (string, error) {
	target, err := p.Remove(dir)
	if err != nil {
		return "", err
	}
	if err := p.mkdirAll(target, 0o750); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			Fatal().WithContext("path", target).Build()
	}
	slog.Info("Prepared output directory", logfields.Path(target))
	return target, nil
}
