package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsintel/intelbot/internal/analyzer"
	"github.com/opsintel/intelbot/internal/collectors"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/lark"
	"github.com/opsintel/intelbot/internal/notifiers"
	"github.com/opsintel/intelbot/internal/providers"
	"github.com/opsintel/intelbot/internal/store"
)

// collectAndAnalyze runs the collection half of the report pipeline:
// every enabled collector, then the analyzer.
func collectAndAnalyze(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]analyzer.Analysis, error) {
	var projects []collectors.Project

	if cfg.GitHub.Enabled {
		history, err := store.OpenHistory(cfg.HistoryDBPath())
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		defer history.Close()

		github := collectors.NewGitHub(cfg.GitHub, history)
		found, err := github.Collect(ctx)
		if err != nil {
			log.Warn("github collection failed", "error", err)
		} else {
			log.Info("github collection done", "projects", len(found))
			projects = append(projects, found...)
		}
	}

	if cfg.HackerNews.Enabled {
		hn := collectors.NewHackerNews(cfg.HackerNews)
		found, err := hn.Collect(ctx)
		if err != nil {
			log.Warn("hackernews collection failed", "error", err)
		} else {
			log.Info("hackernews collection done", "stories", len(found))
			projects = append(projects, found...)
		}
	}

	if len(projects) == 0 {
		return nil, nil
	}

	return buildAnalyzer(cfg, log).Analyze(ctx, projects), nil
}

// runPipeline is the full scheduled job: collect, analyze, notify.
func runPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	analyses, err := collectAndAnalyze(ctx, cfg, log)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		log.Info("nothing new to report")
		return nil
	}
	return notifyAll(ctx, cfg, analyses, log)
}

func notifyAll(ctx context.Context, cfg *config.Config, analyses []analyzer.Analysis, log *slog.Logger) error {
	targets := buildNotifiers(cfg)
	if len(targets) == 0 {
		return fmt.Errorf("no notifier configured")
	}
	var lastErr error
	for _, n := range targets {
		if err := n.Send(ctx, analyses); err != nil {
			log.Error("notification failed", "notifier", n.Name(), "error", err)
			lastErr = err
			continue
		}
		log.Info("notification sent", "notifier", n.Name(), "items", len(analyses))
	}
	return lastErr
}

func buildAnalyzer(cfg *config.Config, log *slog.Logger) *analyzer.Analyzer {
	var provider providers.Provider
	if cfg.Analyzer.APIKey != "" {
		provider = providers.NewOpenAIProvider("analyzer", cfg.Analyzer.APIKey, cfg.Analyzer.APIBase, cfg.Analyzer.Model)
	}
	return analyzer.New(provider, cfg.Analyzer, log)
}

func buildNotifiers(cfg *config.Config) []notifiers.Notifier {
	var targets []notifiers.Notifier
	if cfg.Lark.Enabled && (cfg.Lark.WebhookURL != "" || cfg.Lark.DefaultChatID != "") {
		var client *lark.Client
		if cfg.Lark.AppID != "" && cfg.Lark.AppSecret != "" {
			client = lark.NewClient(cfg.Lark.AppID, cfg.Lark.AppSecret, cfg.Lark.Domain)
		}
		targets = append(targets, notifiers.NewFeishu(cfg.Lark, client))
	}
	if cfg.DingTalk.Enabled && cfg.DingTalk.WebhookURL != "" {
		targets = append(targets, notifiers.NewDingTalk(cfg.DingTalk))
	}
	return targets
}
