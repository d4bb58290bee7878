// Package notifiers delivers daily report cards to chat platforms via
// group webhooks.
package notifiers

import (
	"context"

	"github.com/opsintel/intelbot/internal/analyzer"
)

// Notifier pushes a finished report batch to one destination.
type Notifier interface {
	// Send delivers the analyses. An empty batch is a no-op.
	Send(ctx context.Context, analyses []analyzer.Analysis) error

	// SendTest delivers a short connectivity probe message.
	SendTest(ctx context.Context) error

	// Name returns the destination identifier for logging.
	Name() string
}

const (
	reportTitle      = "🚀 Today's Trending Projects"
	maxPerSection    = 5
	maxHighlights    = 3
	maxTechStackTags = 5
)

func splitBySource(analyses []analyzer.Analysis) (github, hn []analyzer.Analysis) {
	for _, a := range analyses {
		if a.Source == "hackernews" {
			hn = append(hn, a)
		} else {
			github = append(github, a)
		}
	}
	if len(github) > maxPerSection {
		github = github[:maxPerSection]
	}
	if len(hn) > maxPerSection {
		hn = hn[:maxPerSection]
	}
	return github, hn
}
