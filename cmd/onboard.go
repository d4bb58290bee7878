package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/opsintel/intelbot/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive first-time setup",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config %s already exists; edit it directly or remove it first.\n", cfgPath)
		os.Exit(1)
	}

	cfg := config.Default()
	var enableSchedule bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Feishu/Lark App ID").
				Description("From the developer console, cli_xxx.").
				Value(&cfg.Lark.AppID),
			huh.NewInput().
				Title("Feishu/Lark App Secret").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Lark.AppSecret),
			huh.NewSelect[string]().
				Title("Platform domain").
				Options(
					huh.NewOption("Feishu (open.feishu.cn)", "feishu"),
					huh.NewOption("Lark international (open.larksuite.com)", "lark"),
				).
				Value(&cfg.Lark.Domain),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API key").
				Description("OpenAI-compatible endpoint key; used for chat replies and analysis.").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Analyzer.APIKey),
			huh.NewInput().
				Title("Model").
				Value(&cfg.Analyzer.Model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the daily report schedule?").
				Value(&enableSchedule),
			huh.NewInput().
				Title("Report webhook URL (optional)").
				Description("Feishu group custom-bot webhook for daily pushes.").
				Value(&cfg.Lark.WebhookURL),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Printf("Onboarding aborted: %s\n", err)
		os.Exit(1)
	}

	cfg.Lark.Enabled = cfg.Lark.AppID != "" || cfg.Lark.WebhookURL != ""
	cfg.Schedule.Enabled = enableSchedule

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode config: %s\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		fmt.Printf("Failed to write %s: %s\n", cfgPath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s.\n", cfgPath)
	fmt.Println("Next steps:")
	fmt.Println("  intelbot doctor     # verify the setup")
	fmt.Println("  intelbot run --dry-run")
	fmt.Println("  intelbot chat       # start the bot")
}
