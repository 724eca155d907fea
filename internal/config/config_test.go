package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
tsconfig: tsconfig.build.json
entry: lib/main.ts
output:
  directory: out
  strict_writes: true
  write_concurrency: 4
logging:
  level: debug
metrics:
  textfile: metrics/dualbuild.prom
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tsconfig.build.json", cfg.TSConfig)
	assert.Equal(t, "lib/main.ts", cfg.Entry)
	assert.Equal(t, OutputConfig{Directory: "out", StrictWrites: true, WriteConcurrency: 4}, cfg.Output)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "metrics/dualbuild.prom", cfg.Metrics.Textfile)
	require.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "tsconfig.json", cfg.TSConfig)
	assert.Equal(t, "src/index.ts", cfg.Entry)
	assert.Equal(t, "dist", cfg.Output.Directory)
	assert.False(t, cfg.Output.StrictWrites)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DUALBUILD_TEST_OUT", "build/out")
	cfg, err := Load(writeConfig(t, "output:\n  directory: ${DUALBUILD_TEST_OUT}\n"))
	require.NoError(t, err)
	assert.Equal(t, "build/out", cfg.Output.Directory)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "outptu:\n  directory: x\n"))
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(writeConfig(t, "entry: [unclosed\n"))
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty entry", func(c *Config) { c.Entry = " " }},
		{"empty output", func(c *Config) { c.Output.Directory = "" }},
		{"negative concurrency", func(c *Config) { c.Output.WriteConcurrency = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvTSConfig:         "tsconfig.prod.json",
		EnvEntry:            "src/main.ts",
		EnvOutputDir:        "lib",
		EnvStrictWrites:     "true",
		EnvWriteConcurrency: "2",
		EnvLogLevel:         "warn",
		EnvMetricsFile:      "out.prom",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "tsconfig.prod.json", cfg.TSConfig)
	assert.Equal(t, "src/main.ts", cfg.Entry)
	assert.Equal(t, "lib", cfg.Output.Directory)
	assert.True(t, cfg.Output.StrictWrites)
	assert.Equal(t, 2, cfg.Output.WriteConcurrency)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "out.prom", cfg.Metrics.Textfile)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	for _, key := range []string{EnvStrictWrites, EnvWriteConcurrency} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				if k == key {
					return "maybe", true
				}
				return "", false
			})
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DUALBUILD_TEST_A=from-env\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"),
		[]byte("DUALBUILD_TEST_A=from-local\nDUALBUILD_TEST_B=local\n"), 0o600))
	t.Setenv("DUALBUILD_TEST_A", "")
	t.Setenv("DUALBUILD_TEST_B", "")
	require.NoError(t, os.Unsetenv("DUALBUILD_TEST_A"))
	require.NoError(t, os.Unsetenv("DUALBUILD_TEST_B"))

	loaded, err := LoadEnvFiles(dir)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, "from-env", os.Getenv("DUALBUILD_TEST_A"))
	assert.Equal(t, "local", os.Getenv("DUALBUILD_TEST_B"))
}

func TestLoadEnvFiles_NonePresent(t *testing.T) {
	loaded, err := LoadEnvFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}
