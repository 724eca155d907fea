package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dualbuild/internal/config"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

// Global holds process-wide state shared with every command.
type Global struct {
	Logger *slog.Logger
	// Ctx is cancelled on SIGINT/SIGTERM.
	Ctx context.Context
	// Stdout receives user-facing notices such as "Built <path>".
	Stdout io.Writer
}

func (g *Global) runContext() context.Context {
	if g == nil || g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Project configuration file (optional when the default is absent)" default:"dualbuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	WorkDir string           `short:"C" name:"workdir" help:"Project directory" default:"."`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" default:"1" help:"Compile the entry into index.cjs, index.mjs and index.d.ts (default)"`
	Clean CleanCmd `cmd:"" help:"Remove the output directory"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if lvl, err := config.ParseLevel(os.Getenv(config.EnvLogLevel)); err == nil {
		level = lvl
	}
	setupLogging(level, c.Verbose)
	return nil
}

func setupLogging(level slog.Level, verbose bool) {
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// LoadConfig resolves the project configuration: .env files, the YAML file,
// then environment overrides. A missing file is only an error when it was
// named explicitly.
func (c *CLI) LoadConfig() (*config.Config, error) {
	if _, err := config.LoadEnvFiles(c.WorkDir); err != nil {
		return nil, err
	}

	path := c.Config
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.WorkDir, path)
	}
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case ferrors.HasCategory(err, ferrors.CategoryNotFound) && c.Config == config.DefaultFile:
		slog.Debug("No project configuration file, using defaults", slog.String("path", path))
		cfg = config.Default()
	default:
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lvl, err := config.ParseLevel(cfg.Logging.Level); err == nil {
		setupLogging(lvl, c.Verbose)
	}
	return cfg, nil
}

// resolvePath joins a relative path onto the working directory.
func (c *CLI) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}
