package commands

import (
	"fmt"

	"git.home.luguber.info/inful/dualbuild/internal/outdir"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Output string `short:"o" help:"Output directory to remove (default dist)"`
}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Output.Directory
	if c.Output != "" {
		dir = c.Output
	}
	removed, err := outdir.NewPreparer(root.WorkDir).Remove(dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Removed %s\n", removed)
	return nil
}
