package analyzer

import (
	"reflect"
	"testing"

	"github.com/opsintel/intelbot/internal/collectors"
)

func TestParseResponseSections(t *testing.T) {
	reply := `## Summary
A fast HTTP router.
Built for production use.

## Highlights
- zero allocations
- radix tree routing
not a bullet, ignored

## Tech Stack
Go, HTTP

## Audience
Backend developers

## Potential
Likely to keep growing.`

	got := parseResponse(reply)

	if got.Summary != "A fast HTTP router. Built for production use." {
		t.Errorf("summary = %q", got.Summary)
	}
	if want := []string{"zero allocations", "radix tree routing"}; !reflect.DeepEqual(got.Highlights, want) {
		t.Errorf("highlights = %v", got.Highlights)
	}
	if want := []string{"Go", "HTTP"}; !reflect.DeepEqual(got.TechStack, want) {
		t.Errorf("tech stack = %v", got.TechStack)
	}
	if got.Audience != "Backend developers" {
		t.Errorf("audience = %q", got.Audience)
	}
	if got.Potential != "Likely to keep growing." {
		t.Errorf("potential = %q", got.Potential)
	}
}

func TestParseResponseIgnoresPreamble(t *testing.T) {
	got := parseResponse("Sure, here is the analysis:\n## Summary\nA thing.")
	if got.Summary != "A thing." {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestBasicAnalysisGitHub(t *testing.T) {
	got := basicAnalysis(collectors.Project{
		Source:      collectors.SourceGitHub,
		Name:        "acme/rocket",
		URL:         "https://github.com/acme/rocket",
		Description: "A rocket launcher.",
		Language:    "Go",
		Stars:       100,
		StarsToday:  5,
	})
	if got.Summary != "A rocket launcher." {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.Highlights) != 2 {
		t.Errorf("highlights = %v", got.Highlights)
	}
	if !reflect.DeepEqual(got.TechStack, []string{"Go"}) {
		t.Errorf("tech stack = %v", got.TechStack)
	}
}

func TestBasicAnalysisHackerNews(t *testing.T) {
	got := basicAnalysis(collectors.Project{
		Source: collectors.SourceHackerNews,
		Name:   "Show HN: Something",
		URL:    "https://news.ycombinator.com/item?id=1",
		Score:  250,
	})
	if got.Summary != "Show HN: Something" {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.Highlights) != 1 {
		t.Errorf("highlights = %v", got.Highlights)
	}
}
