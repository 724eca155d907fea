package tsconfig

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_CommentsAndTrailingCommas(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{
  // compiler settings
  "compilerOptions": {
    "target": "es2019", /* inline */
    "strict": true,
    "outDir": "./dist",
  },
}`)

	cfg, err := Load(work, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "tsconfig.json"), cfg.Path)
	assert.Equal(t, "es2019", cfg.CompilerOptions["target"])
	assert.Equal(t, true, cfg.CompilerOptions["strict"])
	assert.Equal(t, "dist", cfg.CompilerOptions["outDir"])
	assert.Equal(t, []string{cfg.Path}, cfg.Chain)
}

func TestLoad_NoCompilerOptions(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"include": ["src"]}`)

	cfg, err := Load(work, "tsconfig.json")
	require.NoError(t, err)
	assert.NotNil(t, cfg.CompilerOptions)
	assert.Empty(t, cfg.CompilerOptions)
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(t.TempDir(), "tsconfig.json")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.True(t, ferrors.HasSeverity(err, ferrors.SeverityFatal))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoad_MalformedIsFatal(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"compilerOptions": {"target": }`)

	_, err := Load(work, "tsconfig.json")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_WrongShapeIsFatal(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"compilerOptions": ["not", "an", "object"]}`)

	_, err := Load(work, "tsconfig.json")
	require.Error(t, err)
}

func TestLoad_ExtendsRelative(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "config", "base.json"), `{
  "compilerOptions": {"target": "es2017", "strict": true, "outDir": "../out"}
}`)
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{
  "extends": "./config/base",
  "compilerOptions": {"target": "es2020"}
}`)

	cfg, err := Load(work, "tsconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "es2020", cfg.CompilerOptions["target"], "child wins")
	assert.Equal(t, true, cfg.CompilerOptions["strict"], "inherited from base")
	assert.Equal(t, "out", cfg.CompilerOptions["outDir"], "outDir rebased to the working directory")
	require.Len(t, cfg.Chain, 2)
	assert.Equal(t, filepath.Join(work, "config", "base.json"), cfg.Chain[0])
}

func TestLoad_ExtendsArrayLaterWins(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "a.json"), `{"compilerOptions": {"target": "es2017", "jsx": "react"}}`)
	writeFile(t, filepath.Join(work, "b.json"), `{"compilerOptions": {"target": "es2018"}}`)
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"extends": ["./a.json", "./b.json"]}`)

	cfg, err := Load(work, "tsconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "es2018", cfg.CompilerOptions["target"])
	assert.Equal(t, "react", cfg.CompilerOptions["jsx"])
}

func TestLoad_ExtendsPackage(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "node_modules", "@tsconfig", "node20", "tsconfig.json"),
		`{"compilerOptions": {"target": "es2022", "lib": ["es2023"]}}`)
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"extends": "@tsconfig/node20"}`)

	cfg, err := Load(work, "tsconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "es2022", cfg.CompilerOptions["target"])
}

func TestLoad_ExtendsMissingIsFatal(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "tsconfig.json"), `{"extends": "./nope.json"}`)

	_, err := Load(work, "tsconfig.json")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_ExtendsCycle(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "a.json"), `{"extends": "./b.json"}`)
	writeFile(t, filepath.Join(work, "b.json"), `{"extends": "./a.json"}`)

	_, err := Load(work, "a.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular extends")
}

func TestLoad_ConfigOutsideWorkDirRebasesPaths(t *testing.T) {
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "configs", "tsconfig.build.json"),
		`{"compilerOptions": {"rootDir": "../src", "outDir": "../lib"}}`)

	cfg, err := Load(work, "configs/tsconfig.build.json")
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.CompilerOptions["rootDir"])
	assert.Equal(t, "lib", cfg.CompilerOptions["outDir"])
}
