// Package version implements the version command.
package version

import (
	"github.com/minerva-intel/minerva/internal/cmd/base"
	"github.com/minerva-intel/minerva/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the minerva version"
}

func (c *Command) Help() string {
	return "Usage: minerva version\n"
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
