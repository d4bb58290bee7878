package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("intelbot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND — defaults + env apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Chat bot:")
	check("Lark app_id", cfg.Lark.AppID != "")
	check("Lark app_secret", cfg.Lark.AppSecret != "")
	check("LLM api_key", cfg.Analyzer.APIKey != "")
	fmt.Printf("    %-18s %s\n", "Model:", cfg.Analyzer.Model)

	fmt.Println()
	fmt.Println("  Pipeline:")
	check("GitHub collector", cfg.GitHub.Enabled)
	check("HackerNews collector", cfg.HackerNews.Enabled)
	check("Feishu notifier", cfg.Lark.Enabled && (cfg.Lark.WebhookURL != "" || cfg.Lark.DefaultChatID != ""))
	check("DingTalk notifier", cfg.DingTalk.Enabled && cfg.DingTalk.WebhookURL != "")
	fmt.Printf("    %-18s %s\n", "Cron:", cfg.Schedule.Cron)

	fmt.Println()
	fmt.Println("  Data:")
	dataDir := cfg.ResolveDataDir()
	fmt.Printf("    %-18s %s", "Dir:", dataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Printf(" (NOT WRITABLE: %s)\n", err)
		return
	}
	fmt.Println(" (OK)")

	history, err := store.OpenHistory(cfg.HistoryDBPath())
	if err != nil {
		fmt.Printf("    %-18s FAILED (%s)\n", "History DB:", err)
		return
	}
	history.Close()
	fmt.Printf("    %-18s %s (OK)\n", "History DB:", cfg.HistoryDBPath())
}

func check(name string, ok bool) {
	status := "MISSING"
	if ok {
		status = "OK"
	}
	fmt.Printf("    %-18s %s\n", name+":", status)
}
