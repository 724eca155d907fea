package commands

import (
	"fmt"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dualbuild/internal/build"
	"git.home.luguber.info/inful/dualbuild/internal/config"
	"git.home.luguber.info/inful/dualbuild/internal/logfields"
	"git.home.luguber.info/inful/dualbuild/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	TSConfig         string `name:"tsconfig" help:"Compiler configuration file (default tsconfig.json)"`
	Entry            string `help:"Entry source file (default src/index.ts)"`
	Output           string `short:"o" help:"Output directory, reset on every build (default dist)"`
	StrictWrites     bool   `name:"strict-writes" help:"Fail the build when any output file cannot be written"`
	WriteConcurrency int    `name:"write-concurrency" help:"Maximum parallel file writes (0 keeps the configured value)"`
	MetricsFile      string `name:"metrics-file" help:"Write Prometheus metrics to this file after the build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	b.apply(cfg)
	return RunBuild(g, root, cfg)
}

// apply lets flags override the loaded configuration.
func (b *BuildCmd) apply(cfg *config.Config) {
	if b.TSConfig != "" {
		cfg.TSConfig = b.TSConfig
	}
	if b.Entry != "" {
		cfg.Entry = b.Entry
	}
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.StrictWrites {
		cfg.Output.StrictWrites = true
	}
	if b.WriteConcurrency > 0 {
		cfg.Output.WriteConcurrency = b.WriteConcurrency
	}
	if b.MetricsFile != "" {
		cfg.Metrics.Textfile = b.MetricsFile
	}
}

// RunBuild executes one build with cfg.
func RunBuild(g *Global, root *CLI, cfg *config.Config) error {
	out := g.stdout()
	svc := build.NewService().WithConsole(out)

	var reg *prom.Registry
	if cfg.Metrics.Textfile != "" {
		reg = prom.NewRegistry()
		svc = svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
	}

	res, err := svc.Run(g.runContext(), build.Request{
		WorkDir:          root.WorkDir,
		TSConfig:         cfg.TSConfig,
		Entry:            cfg.Entry,
		OutputDir:        cfg.Output.Directory,
		StrictWrites:     cfg.Output.StrictWrites,
		WriteConcurrency: cfg.Output.WriteConcurrency,
	})

	if reg != nil {
		path := root.resolvePath(cfg.Metrics.Textfile)
		if werr := metrics.WriteTextfile(path, reg); werr != nil {
			slog.Warn("Failed to write metrics file", logfields.Path(path), logfields.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	if res.Status == build.StatusDegraded {
		_, _ = fmt.Fprintf(out, "Build finished with %d of %d files not written\n",
			res.WriteFailures, len(res.Writes))
	}
	return nil
}
