package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/verlaine-io/oncal/oncalendar"
)

// NewValidateCommand returns the validate subcommand.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check OnCalendar expressions for syntax errors",
		ArgsUsage: "EXPRESSION [EXPRESSION...]",
		Action:    runValidate,
	}
}

func runValidate(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("missing expression argument")
	}

	failed := false
	for _, expr := range cmd.Args().Slice() {
		if err := oncalendar.Validate(expr); err != nil {
			failed = true
			fmt.Printf("%s: %v\n", expr, err)
			continue
		}
		fmt.Printf("%s: ok\n", expr)
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
