package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpipe/cmd/docpipe/commands"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal()

	ctx := kong.Parse(cli,
		kong.Name("docpipe"),
		kong.Description("Build a Python project's documentation: fetch, install, generate."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
