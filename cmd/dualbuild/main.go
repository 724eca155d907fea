package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dualbuild/cmd/dualbuild/commands"
	ferrors "git.home.luguber.info/inful/dualbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dualbuild/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("dualbuild"),
		kong.Description("Compile one TypeScript entry into CommonJS, ES module and declaration outputs."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	globals := &commands.Global{Logger: slog.Default(), Ctx: ctx, Stdout: os.Stdout}
	err := parser.Run(globals, &cli)
	stop()
	// AfterApply may have replaced the default logger.
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
