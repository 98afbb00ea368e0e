package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/verlaine-io/oncal/internal/config"
	"github.com/verlaine-io/oncal/internal/scheduler"
)

// NewScheduleCommand returns the schedule subcommand.
func NewScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Manage persisted schedule entries",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List schedule entries",
				Action: runScheduleList,
			},
			{
				Name:      "add",
				Usage:     "Add a schedule entry",
				ArgsUsage: "EXPRESSION",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Entry title",
					},
					&cli.IntFlag{
						Name:  "max-runs",
						Usage: "Disable the entry after this many runs (0 = unlimited)",
					},
				},
				Action: runScheduleAdd,
			},
			{
				Name:      "rm",
				Usage:     "Remove a schedule entry",
				ArgsUsage: "ID",
				Action:    runScheduleRm,
			},
			{
				Name:      "history",
				Usage:     "Show recent firings",
				ArgsUsage: "[ID]",
				Action:    runScheduleHistory,
			},
		},
		DefaultCommand: "list",
	}
}

func openScheduleStore(cmd *cli.Command) (*scheduler.Store, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return scheduler.OpenStore(cfg.Database.Path)
}

func runScheduleList(_ context.Context, cmd *cli.Command) error {
	store, err := openScheduleStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No schedule entries found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tEXPRESSION\tKIND\tENABLED\tRUNS\tLAST FIRED")
	for _, e := range entries {
		lastFired := "-"
		if e.LastFiredAt != nil {
			lastFired = e.LastFiredAt.Format("2006-01-02 15:04:05")
		}
		runs := fmt.Sprintf("%d", e.RunCount)
		if e.MaxRuns > 0 {
			runs = fmt.Sprintf("%d/%d", e.RunCount, e.MaxRuns)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			e.ID, e.Title, e.Expression, e.Kind, e.Enabled, runs, lastFired)
	}
	return w.Flush()
}

func runScheduleAdd(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one expression argument")
	}
	expr := cmd.Args().First()

	trigger, err := scheduler.ParseTrigger(expr)
	if err != nil {
		return err
	}

	store, err := openScheduleStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entry := &scheduler.Entry{
		ID:         scheduler.GenerateEntryID(),
		Title:      cmd.String("title"),
		Expression: expr,
		Kind:       trigger.Kind(),
		MaxRuns:    cmd.Int("max-runs"),
		Enabled:    true,
		CreatedAt:  time.Now(),
	}
	if err := store.Save(entry); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}

	fmt.Printf("Added %s\n", entry.ID)
	if next, err := trigger.Next(time.Now()); err == nil {
		fmt.Printf("Next occurrence: %s\n", next.Format(time.RFC3339))
	}
	return nil
}

func runScheduleRm(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one ID argument")
	}
	id := cmd.Args().First()

	store, err := openScheduleStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("schedule entry not found: %s", id)
	}
	if err := store.Delete(id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	fmt.Printf("Removed %s\n", id)
	return nil
}

func runScheduleHistory(_ context.Context, cmd *cli.Command) error {
	store, err := openScheduleStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	firings, err := store.ListFirings(cmd.Args().First(), 20)
	if err != nil {
		return fmt.Errorf("list firings: %w", err)
	}
	if len(firings) == 0 {
		fmt.Println("No firing history found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIRED\tSCHEDULED\tENTRY\tEXPRESSION\tRUN")
	for _, f := range firings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			f.FiredAt.Format("2006-01-02 15:04:05"),
			f.ScheduledFor.Format("2006-01-02 15:04:05"),
			f.EntryID, f.Expression, f.RunCount)
	}
	return w.Flush()
}
