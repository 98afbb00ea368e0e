package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/verlaine-io/oncal/internal/config"
	"github.com/verlaine-io/oncal/internal/events"
	"github.com/verlaine-io/oncal/internal/gateway"
	"github.com/verlaine-io/oncal/internal/scheduler"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the oncal scheduler daemon and HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	store, err := scheduler.OpenStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	sched := scheduler.New(scheduler.Config{Bus: bus, Store: store})
	sched.Start()
	defer sched.Stop()

	if err := registerDeclaredSchedules(cfg, sched); err != nil {
		return err
	}

	// SIGHUP re-reads .env and the config file and picks up new entries
	// from the schedules file without a restart.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	reloader.OnReload(func(newCfg *config.Config) {
		if err := registerDeclaredSchedules(newCfg, sched); err != nil {
			slog.Error("reload: register schedules", "error", err)
		}
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := reloader.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
			}
		}
	}()

	server := gateway.NewServer(bus, sched, store, cfg.Gateway.Host, cfg.Gateway.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// registerDeclaredSchedules adds entries from the schedules YAML file that
// the scheduler does not already know. It is idempotent so a config reload
// can call it again: declarations without an ID are matched by title and
// expression.
func registerDeclaredSchedules(cfg *config.Config, sched *scheduler.Scheduler) error {
	decls, err := config.LoadSchedules(cfg.Schedules.File)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}

	existing := sched.List()
	for _, d := range decls {
		if d.Disabled {
			continue
		}
		if d.ID != "" {
			if _, ok := sched.Get(d.ID); ok {
				continue
			}
		} else if declaredAlready(existing, d) {
			continue
		}
		entry := &scheduler.Entry{
			ID:         d.ID,
			Title:      d.Title,
			Expression: d.Expression,
			MaxRuns:    d.MaxRuns,
			Enabled:    true,
		}
		if err := sched.Add(entry); err != nil {
			return fmt.Errorf("register schedule %q: %w", d.Title, err)
		}
	}
	return nil
}

func declaredAlready(entries []*scheduler.Entry, d config.ScheduleDecl) bool {
	for _, e := range entries {
		if e.Title == d.Title && e.Expression == d.Expression {
			return true
		}
	}
	return false
}
