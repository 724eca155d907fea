package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

// Environment variables that override file settings.
const (
	EnvTSConfig         = "DUALBUILD_TSCONFIG"
	EnvEntry            = "DUALBUILD_ENTRY"
	EnvOutputDir        = "DUALBUILD_OUTPUT_DIR"
	EnvStrictWrites     = "DUALBUILD_STRICT_WRITES"
	EnvWriteConcurrency = "DUALBUILD_WRITE_CONCURRENCY"
	EnvLogLevel         = "DUALBUILD_LOG_LEVEL"
	EnvMetricsFile      = "DUALBUILD_METRICS_FILE"
)

// envFiles are loaded in order; a variable set by an earlier file or by the
// process environment is never overwritten.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env files from dir into the process environment and
// returns the files that were read. Missing files are skipped.
func LoadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, ferrors.WrapError(err, ferrors.CategoryConfig, "load environment file").
				Fatal().WithContext("path", path).Build()
		}
		slog.Debug("Loaded environment variables", slog.String("path", path))
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// ApplyEnv overrides settings from environment variables found by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTSConfig); ok && v != "" {
		c.TSConfig = v
	}
	if v, ok := lookup(EnvEntry); ok && v != "" {
		c.Entry = v
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := lookup(EnvStrictWrites); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid "+EnvStrictWrites).
				Fatal().WithContext("value", v).Build()
		}
		c.Output.StrictWrites = b
	}
	if v, ok := lookup(EnvWriteConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid "+EnvWriteConcurrency).
				Fatal().WithContext("value", v).Build()
		}
		c.Output.WriteConcurrency = n
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvMetricsFile); ok && v != "" {
		c.Metrics.Textfile = v
	}
	return nil
}
