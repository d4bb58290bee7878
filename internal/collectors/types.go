// Package collectors gathers candidate projects and stories from GitHub
// trending and Hacker News for the analysis pipeline, and serves the
// chat bot's /deep lookups.
package collectors

import "time"

// Project sources.
const (
	SourceGitHub     = "github"
	SourceHackerNews = "hackernews"
)

// Project is a collected item: a GitHub repository or a Hacker News
// story, normalized for ranking and analysis.
type Project struct {
	Source      string // "github" or "hackernews"
	Name        string // owner/repo for GitHub, title for HN
	URL         string
	Description string
	Language    string
	Stars       int
	StarsToday  int
	Forks       int
	Score       int // HN points
	CreatedAt   time.Time
	GrowthRate  float64 // stars_today / stars, percent
	Readme      string  // truncated README, GitHub only
}
