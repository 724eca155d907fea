package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dualbuild/internal/config"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
)

const indexSource = `export default function add(a: number, b: number): number {
  return a + b;
}
`

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli,
		kong.Name("dualbuild"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	return parser
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.ts"), []byte(indexSource), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tsconfig.json"),
		[]byte(`{ "compilerOptions": { "target": "es2019", "strict": true } }`), 0o600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser := newParser(t, &cli)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = kctx.Run(&Global{Ctx: context.Background(), Stdout: &out}, &cli)
	return out.String(), err
}

func TestParse_DefaultCommandIsBuild(t *testing.T) {
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"-C", "/tmp/project"})
	require.NoError(t, err)
	assert.Equal(t, "build", kctx.Command())
	assert.Equal(t, "/tmp/project", cli.WorkDir)
	assert.Equal(t, config.DefaultFile, cli.Config)
}

func TestParse_BuildFlags(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{
		"build", "--tsconfig", "tsconfig.build.json", "--entry", "lib/main.ts",
		"-o", "out", "--strict-writes", "--write-concurrency", "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "tsconfig.build.json", cli.Build.TSConfig)
	assert.Equal(t, "lib/main.ts", cli.Build.Entry)
	assert.Equal(t, "out", cli.Build.Output)
	assert.True(t, cli.Build.StrictWrites)
	assert.Equal(t, 3, cli.Build.WriteConcurrency)
}

func TestBuildCmd_Apply(t *testing.T) {
	cfg := config.Default()
	cfg.Output.StrictWrites = true
	cfg.Output.WriteConcurrency = 5

	(&BuildCmd{Output: "lib"}).apply(cfg)
	assert.Equal(t, "lib", cfg.Output.Directory)
	assert.Equal(t, "tsconfig.json", cfg.TSConfig)
	assert.True(t, cfg.Output.StrictWrites, "flag absence must not disable strict writes")
	assert.Equal(t, 5, cfg.Output.WriteConcurrency)
}

func TestBuildCommand_WritesAllOutputs(t *testing.T) {
	dir := writeProject(t)
	metricsFile := filepath.Join("metrics", "dualbuild.prom")

	out, err := run(t, "-C", dir, "build", "--metrics-file", metricsFile)
	require.NoError(t, err)

	for _, name := range []string{"index.cjs", "index.mjs", "index.d.ts"} {
		assert.FileExists(t, filepath.Join(dir, "dist", name))
		assert.Contains(t, out, "Built "+filepath.Join(dir, "dist", name))
	}
	cjs, err := os.ReadFile(filepath.Join(dir, "dist", "index.cjs"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(cjs),
		"module.exports = module.exports.default;\nmodule.exports.default = module.exports;\n"))

	prom, err := os.ReadFile(filepath.Join(dir, metricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "dualbuild_build_outcomes_total")
}

func TestBuildCommand_ConfigFile(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFile),
		[]byte("output:\n  directory: lib\n"), 0o600))

	_, err := run(t, "-C", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "lib", "index.mjs"))
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
}

func TestBuildCommand_ExplicitConfigMissing(t *testing.T) {
	dir := writeProject(t)
	_, err := run(t, "-C", dir, "-c", "custom.yaml")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestBuildCommand_MissingTSConfig(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "tsconfig.json")))

	_, err := run(t, "-C", dir)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "dist", "index.cjs"))
}

func TestCleanCommand(t *testing.T) {
	dir := writeProject(t)
	_, err := run(t, "-C", dir)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, "dist"))

	out, err := run(t, "-C", dir, "clean")
	require.NoError(t, err)
	assert.Equal(t, "Removed "+filepath.Join(dir, "dist")+"\n", out)
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
}

func TestCleanCommand_RejectsUnsafeDirectory(t *testing.T) {
	dir := writeProject(t)
	_, err := run(t, "-C", dir, "clean", "-o", ".")
	require.Error(t, err)
	assert.DirExists(t, dir)
}
