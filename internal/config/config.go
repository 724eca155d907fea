// Package config loads dualbuild's project configuration.
//
// Settings come from, lowest precedence first: built-in defaults, the YAML
// project file (dualbuild.yaml), DUALBUILD_* environment variables (which
// .env files may populate), and finally command-line flags applied by the
// caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

// DefaultFile is the project configuration file name.
const DefaultFile = "dualbuild.yaml"

// Config represents the project configuration.
type Config struct {
	// TSConfig is the compiler configuration file, relative to the project.
	TSConfig string        `yaml:"tsconfig"`
	Entry    string        `yaml:"entry"`
	Output   OutputConfig  `yaml:"output"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// OutputConfig controls where and how output files are written.
type OutputConfig struct {
	Directory        string `yaml:"directory"`
	StrictWrites     bool   `yaml:"strict_writes"`
	WriteConcurrency int    `yaml:"write_concurrency"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// MetricsConfig represents metrics export configuration.
type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus text dump after each build.
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the configuration file at path. Environment variables in the
// file are expanded before decoding; unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "configuration file not found").
				Fatal().WithContext("path", path).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").
			Fatal().WithContext("path", path).Build()
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration file").
			Fatal().WithContext("path", path).Build()
	}

	cfg.applyDefaults()
	slog.Debug("Loaded project configuration", slog.String("path", path))
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TSConfig == "" {
		c.TSConfig = "tsconfig.json"
	}
	if c.Entry == "" {
		c.Entry = "src/index.ts"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "dist"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for values no build can use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Entry) == "" {
		return ferrors.ValidationError("entry must not be empty").Build()
	}
	if strings.TrimSpace(c.Output.Directory) == "" {
		return ferrors.ValidationError("output.directory must not be empty").Build()
	}
	if c.Output.WriteConcurrency < 0 {
		return ferrors.ValidationError("output.write_concurrency must not be negative").
			WithContext("value", c.Output.WriteConcurrency).Build()
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return ferrors.ValidationError("invalid logging.level").
			WithCause(err).WithContext("value", c.Logging.Level).Build()
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
