package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsintel/intelbot/internal/bot"
	"github.com/opsintel/intelbot/internal/collectors"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/lark"
	"github.com/opsintel/intelbot/internal/providers"
	"github.com/opsintel/intelbot/internal/scheduler"
	"github.com/opsintel/intelbot/internal/tracing"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run the Feishu/Lark chat bot (plus the scheduler when enabled)",
		Run: func(cmd *cobra.Command, args []string) {
			runChat()
		},
	}
}

func runChat() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateForChat(); err != nil {
		slog.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, slog.Default())
	if err != nil {
		slog.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	client := lark.NewClient(cfg.Lark.AppID, cfg.Lark.AppSecret, cfg.Lark.Domain)
	provider := providers.NewOpenAIProvider("chat", cfg.Analyzer.APIKey, cfg.Analyzer.APIBase, cfg.Analyzer.Model)
	lookup := collectors.NewGitHub(cfg.GitHub, nil)

	b := bot.New(cfg, client, client, provider, lookup, slog.Default())
	if err := b.Start(ctx, client.GetBotInfo); err != nil {
		slog.Error("bot startup failed", "error", err)
		os.Exit(1)
	}
	defer b.Stop()

	// Pipeline settings (keywords, limits, notifier targets) hot-reload
	// from disk; the intake pipeline itself needs a restart to re-tune.
	currentCfg := func() *config.Config { return cfg }
	if watcher, werr := config.NewWatcher(cfgPath, cfg); werr == nil {
		defer watcher.Close()
		currentCfg = watcher.Current
	} else {
		slog.Debug("config watcher unavailable", "error", werr)
	}

	if cfg.Schedule.Enabled {
		sched, serr := scheduler.New(cfg.Schedule.Cron, func(ctx context.Context) error {
			return runPipeline(ctx, currentCfg(), slog.Default())
		}, slog.Default())
		if serr != nil {
			slog.Error("scheduler setup failed", "error", serr)
			os.Exit(1)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	ws := lark.NewWSClient(client, b)
	if err := ws.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("websocket client stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}
