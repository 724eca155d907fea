package tsconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
)

// DefaultName is the configuration file read when none is given.
const DefaultName = "tsconfig.json"

// pathOptions hold paths relative to the file that declares them.
var pathOptions = []string{"outDir", "rootDir", "baseUrl", "declarationDir"}

// Config is a loaded configuration file.
type Config struct {
	// Path is the absolute path of the file that was loaded.
	Path string
	// CompilerOptions is the merged compilerOptions of the whole extends chain.
	CompilerOptions Options
	// Chain lists absolute paths of every file read, base-most first.
	Chain []string
}

type rawConfig struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions Options         `json:"compilerOptions"`
}

// Load reads name (relative to workDir unless absolute) and parses it.
// Failing to read or parse any file in the chain is fatal.
func Load(workDir, name string) (*Config, error) {
	if name == "" {
		name = DefaultName
	}
	work, err := filepath.Abs(workDir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve working directory").
			Fatal().WithContext("path", workDir).Build()
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(work, path)
	}

	l := &loader{work: work, visiting: map[string]bool{}}
	opts, err := l.load(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = Options{}
	}
	slog.Debug("Loaded compiler configuration", logfields.Path(path), slog.Int("files", len(l.chain)))
	return &Config{Path: filepath.Clean(path), CompilerOptions: opts, Chain: l.chain}, nil
}

type loader struct {
	work     string
	visiting map[string]bool
	chain    []string
}

func (l *loader) load(path string) (Options, error) {
	if l.visiting[path] {
		return nil, ferrors.ConfigError("circular extends in compiler configuration").
			WithContext("path", path).Build()
	}
	l.visiting[path] = true
	defer delete(l.visiting, path)

	raw, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	parents, err := extendsList(raw.Extends)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid extends").
			Fatal().WithContext("path", path).Build()
	}

	merged := Options{}
	for _, spec := range parents {
		parentPath, err := resolveExtends(filepath.Dir(path), spec)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve extends").
				Fatal().WithContext("path", path).WithContext("extends", spec).Build()
		}
		parentOpts, err := l.load(parentPath)
		if err != nil {
			return nil, err
		}
		merged = merged.Merge(parentOpts)
	}

	own := l.rebase(raw.CompilerOptions, filepath.Dir(path))
	l.chain = append(l.chain, path)
	return merged.Merge(own), nil
}

func parseFile(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read compiler configuration").
			Fatal().WithContext("path", path).Build()
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse compiler configuration").
			Fatal().WithContext("path", path).Build()
	}
	var raw rawConfig
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode compiler configuration").
			Fatal().WithContext("path", path).Build()
	}
	return &raw, nil
}

// extendsList accepts the string and array forms of "extends".
func extendsList(msg json.RawMessage) ([]string, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(msg, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(msg, &many); err != nil {
		return nil, fmt.Errorf("extends must be a string or an array of strings")
	}
	return many, nil
}

func resolveExtends(dir, spec string) (string, error) {
	if spec == "" {
		return "", fmt.Errorf("empty extends specifier")
	}
	if filepath.IsAbs(spec) || strings.HasPrefix(spec, ".") {
		p := spec
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.FromSlash(spec))
		}
		return firstFile(p, p+".json")
	}

	// Package specifier: search node_modules upward from dir.
	for cur := dir; ; cur = filepath.Dir(cur) {
		base := filepath.Join(cur, "node_modules", filepath.FromSlash(spec))
		if p, err := firstFile(base, base+".json", filepath.Join(base, DefaultName)); err == nil {
			return p, nil
		}
		if filepath.Dir(cur) == cur {
			break
		}
	}
	return "", fmt.Errorf("cannot find %q in node_modules: %w", spec, fs.ErrNotExist)
}

func firstFile(candidates ...string) (string, error) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return filepath.Clean(c), nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", candidates[0], fs.ErrNotExist)
}

// rebase rewrites path-valued options declared in dir so they are relative
// to the loader's working directory, in slash form.
func (l *loader) rebase(opts Options, dir string) Options {
	if opts == nil {
		return Options{}
	}
	out := opts.Clone()
	for _, name := range pathOptions {
		for key, v := range out {
			if !strings.EqualFold(key, name) {
				continue
			}
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			abs := filepath.FromSlash(s)
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(dir, abs)
			}
			if rel, err := filepath.Rel(l.work, abs); err == nil {
				out[key] = filepath.ToSlash(rel)
			} else {
				out[key] = filepath.ToSlash(abs)
			}
		}
	}
	return out
}
