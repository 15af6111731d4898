package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/minerva-intel/minerva/internal/cmd/base"
	"github.com/minerva-intel/minerva/internal/cmd/commands/drain"
	"github.com/minerva-intel/minerva/internal/cmd/commands/migrate"
	"github.com/minerva-intel/minerva/internal/cmd/commands/version"
)

// Commands is the mapping of all available CLI commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	Commands = map[string]cli.CommandFactory{
		"drain": func() (cli.Command, error) {
			return &drain.Command{
				Command: base.NewCommand(ui, log.Named("drain")),
			}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migrate.Command{
				Command: base.NewCommand(ui, log.Named("migrate")),
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{
				Command: base.NewCommand(ui, log.Named("version")),
			}, nil
		},
	}
}
