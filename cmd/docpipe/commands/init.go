package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory to write docpipe.yaml into (default: the --config path)" type:"path"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, DefaultConfigPath)
	}
	_, _ = fmt.Fprintf(g.Stdout, "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.Stdout, "Initialized successfully")
	return nil
}
