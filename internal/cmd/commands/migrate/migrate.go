// Package migrate implements the schema migration command.
package migrate

import (
	"flag"
	"fmt"

	"github.com/minerva-intel/minerva/internal/cmd/base"
	"github.com/minerva-intel/minerva/internal/config"
	"github.com/minerva-intel/minerva/internal/db"
)

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Migrate the database schema"
}

func (c *Command) Help() string {
	return `Usage: minerva migrate [-config=config.hcl]

  Connect to the configured database and bring the schema up to date.
  Without a config file, a local SQLite database under ./.minerva is
  created and migrated.
`
}

func (c *Command) Run(args []string) int {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.StringVar(&c.flagConfig, "config", "", "Path to configuration file")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	var (
		cfg *config.Config
		err error
	)
	if c.flagConfig != "" {
		cfg, err = config.FromFile(c.flagConfig)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
			return 1
		}
	} else {
		cfg = config.Default(".minerva")
	}

	conn, err := db.NewDB(cfg, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error connecting to database: %v", err))
		return 1
	}

	if err := db.Migrate(conn); err != nil {
		c.UI.Error(fmt.Sprintf("error migrating database: %v", err))
		return 1
	}

	c.UI.Output("Database schema is up to date.")
	return 0
}
