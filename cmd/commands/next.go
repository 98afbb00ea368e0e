package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/verlaine-io/oncal/oncalendar"
)

// NewNextCommand returns the next subcommand.
func NewNextCommand() *cli.Command {
	return &cli.Command{
		Name:      "next",
		Usage:     "Print the next occurrences of an OnCalendar expression",
		ArgsUsage: "EXPRESSION [EXPRESSION...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of occurrences to print",
				Value:   5,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Reference time (RFC 3339, default now)",
			},
		},
		Action: runNext,
	}
}

func runNext(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("missing expression argument")
	}
	text := strings.Join(cmd.Args().Slice(), "\n")

	from := time.Now()
	if v := cmd.String("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parse from: %w", err)
		}
		from = t
	}

	sched, err := oncalendar.NewSchedule(text, from)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRENCE\tIN")

	count := cmd.Int("count")
	for i := 0; i < count; i++ {
		next, err := sched.Next()
		if err != nil {
			if errors.Is(err, oncalendar.ErrExhausted) {
				break
			}
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", next.Format(time.RFC3339), next.Sub(from).Round(time.Second))
	}
	return w.Flush()
}
