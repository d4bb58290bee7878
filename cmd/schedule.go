package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/scheduler"
)

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the report pipeline on the configured cron, without the chat bot",
		Run: func(cmd *cobra.Command, args []string) {
			runSchedule()
		},
	}
}

func runSchedule() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(cfg.Schedule.Cron, func(ctx context.Context) error {
		return runPipeline(ctx, cfg, slog.Default())
	}, slog.Default())
	if err != nil {
		slog.Error("scheduler setup failed", "error", err)
		os.Exit(1)
	}
	sched.Start(ctx)

	<-ctx.Done()
	sched.Stop()
	slog.Info("shutting down")
}
