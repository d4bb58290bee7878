package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/opsintel/intelbot/internal/analyzer"
	"github.com/opsintel/intelbot/internal/config"
)

func runCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collect-analyze-notify pipeline once",
		Run: func(cmd *cobra.Command, args []string) {
			runOnce(dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "collect and analyze, print results instead of notifying")
	return cmd
}

func runOnce(dryRun bool) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRun {
		analyses, err := collectAndAnalyze(ctx, cfg, slog.Default())
		if err != nil {
			slog.Error("pipeline failed", "error", err)
			os.Exit(1)
		}
		printResults(analyses)
		return
	}

	if err := runPipeline(ctx, cfg, slog.Default()); err != nil {
		slog.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

// printResults renders a terminal table. Column widths are display
// widths, so CJK titles stay aligned.
func printResults(analyses []analyzer.Analysis) {
	if len(analyses) == 0 {
		fmt.Println("Nothing new today.")
		return
	}

	nameW, langW := runewidth.StringWidth("PROJECT"), runewidth.StringWidth("LANG")
	for _, a := range analyses {
		if w := runewidth.StringWidth(a.Title); w > nameW {
			nameW = w
		}
		if w := runewidth.StringWidth(a.Project.Language); w > langW {
			langW = w
		}
	}

	fmt.Printf("%s  %s  %8s  %7s  %s\n",
		runewidth.FillRight("PROJECT", nameW),
		runewidth.FillRight("LANG", langW),
		"STARS", "TODAY", "SUMMARY")
	for _, a := range analyses {
		summary := a.Summary
		if runewidth.StringWidth(summary) > 60 {
			summary = runewidth.Truncate(summary, 60, "…")
		}
		fmt.Printf("%s  %s  %8d  %+7d  %s\n",
			runewidth.FillRight(a.Title, nameW),
			runewidth.FillRight(a.Project.Language, langW),
			a.Project.Stars, a.Project.StarsToday, summary)
	}
	fmt.Printf("\n%d item(s); sources: %s\n", len(analyses), sourcesOf(analyses))
}

func sourcesOf(analyses []analyzer.Analysis) string {
	seen := map[string]bool{}
	var out []string
	for _, a := range analyses {
		if !seen[a.Source] {
			seen[a.Source] = true
			out = append(out, a.Source)
		}
	}
	return strings.Join(out, ", ")
}
