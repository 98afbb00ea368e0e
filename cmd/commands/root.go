package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/verlaine-io/oncal/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "oncal",
		Usage: "systemd OnCalendar expression evaluation and scheduling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewNextCommand(),
			NewValidateCommand(),
			NewServeCommand(),
			NewScheduleCommand(),
		},
	}
}
