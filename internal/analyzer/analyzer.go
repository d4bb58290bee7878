// Package analyzer turns collected projects into structured write-ups
// using an LLM, with a plain fallback when no provider is configured.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsintel/intelbot/internal/collectors"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/providers"
)

const systemPrompt = `You are a technology analyst. Analyze the given open-source project or tech story and reply in exactly this format:

## Summary
[1-2 sentences describing what it does]

## Highlights
- [highlight 1]
- [highlight 2]
- [highlight 3]

## Tech Stack
[main technologies, comma separated]

## Audience
[who this is for]

## Potential
[short assessment of where this is heading]`

// Analysis is the structured result for one project.
type Analysis struct {
	Title      string
	URL        string
	Source     string
	Summary    string
	Highlights []string
	TechStack  []string
	Audience   string
	Potential  string
	Project    collectors.Project
}

// Analyzer produces analyses for collected projects.
type Analyzer struct {
	provider providers.Provider
	cfg      config.AnalyzerConfig
	log      *slog.Logger
}

// New builds an Analyzer. provider may be nil, in which case every
// analysis falls back to the raw project data.
func New(provider providers.Provider, cfg config.AnalyzerConfig, log *slog.Logger) *Analyzer {
	return &Analyzer{provider: provider, cfg: cfg, log: log}
}

// Analyze runs every project through the LLM. A failed call degrades to
// the basic analysis for that project instead of failing the batch.
func (a *Analyzer) Analyze(ctx context.Context, projects []collectors.Project) []Analysis {
	results := make([]Analysis, 0, len(projects))
	for _, p := range projects {
		if a.provider == nil {
			results = append(results, basicAnalysis(p))
			continue
		}
		analysis, err := a.analyzeOne(ctx, p)
		if err != nil {
			a.log.Warn("analysis failed, using basic summary",
				"project", p.Name, "error", err)
			analysis = basicAnalysis(p)
		}
		results = append(results, analysis)
	}
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, p collectors.Project) (Analysis, error) {
	resp, err := a.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(p)},
		},
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("chat: %w", err)
	}

	out := parseResponse(resp.Content)
	out.Title = p.Name
	out.URL = p.URL
	out.Source = p.Source
	out.Project = p
	return out, nil
}

func buildPrompt(p collectors.Project) string {
	var b strings.Builder
	switch p.Source {
	case collectors.SourceHackerNews:
		fmt.Fprintf(&b, "Analyze this Hacker News story:\n\n")
		fmt.Fprintf(&b, "Title: %s\n", p.Name)
		fmt.Fprintf(&b, "Link: %s\n", p.URL)
		fmt.Fprintf(&b, "Points: %d\n", p.Score)
	default:
		fmt.Fprintf(&b, "Analyze this GitHub project:\n\n")
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
		fmt.Fprintf(&b, "Description: %s\n", orNone(p.Description))
		fmt.Fprintf(&b, "Language: %s\n", orNone(p.Language))
		fmt.Fprintf(&b, "Stars: %d (today: +%d)\n", p.Stars, p.StarsToday)
		fmt.Fprintf(&b, "Forks: %d\n", p.Forks)
		if p.Readme != "" {
			fmt.Fprintf(&b, "\nREADME excerpt:\n%s\n", p.Readme)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// parseResponse walks the markdown reply section by section. Unknown
// lines before the first heading are ignored; prose sections join
// multi-line text with spaces.
func parseResponse(content string) Analysis {
	var out Analysis
	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "## Summary"):
			section = "summary"
		case strings.HasPrefix(line, "## Highlights"):
			section = "highlights"
		case strings.HasPrefix(line, "## Tech Stack"):
			section = "tech"
		case strings.HasPrefix(line, "## Audience"):
			section = "audience"
		case strings.HasPrefix(line, "## Potential"):
			section = "potential"
		default:
			switch section {
			case "summary":
				out.Summary = joinProse(out.Summary, line)
			case "highlights":
				if item, ok := strings.CutPrefix(line, "- "); ok {
					out.Highlights = append(out.Highlights, item)
				}
			case "tech":
				for _, t := range strings.Split(line, ",") {
					if t = strings.TrimSpace(t); t != "" {
						out.TechStack = append(out.TechStack, t)
					}
				}
			case "audience":
				out.Audience = joinProse(out.Audience, line)
			case "potential":
				out.Potential = joinProse(out.Potential, line)
			}
		}
	}
	return out
}

func joinProse(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + " " + line
}

// basicAnalysis is the no-LLM fallback built from collected fields.
func basicAnalysis(p collectors.Project) Analysis {
	out := Analysis{
		Title:   p.Name,
		URL:     p.URL,
		Source:  p.Source,
		Project: p,
	}
	if p.Source == collectors.SourceHackerNews {
		out.Summary = p.Name
		out.Highlights = []string{fmt.Sprintf("%d points on Hacker News", p.Score)}
		return out
	}
	out.Summary = p.Description
	if out.Summary == "" {
		out.Summary = "No description."
	}
	out.Highlights = []string{
		fmt.Sprintf("%d stars", p.Stars),
		fmt.Sprintf("+%d today", p.StarsToday),
	}
	if p.Language != "" {
		out.TechStack = []string{p.Language}
	}
	return out
}
