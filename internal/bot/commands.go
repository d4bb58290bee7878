package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsintel/intelbot/internal/collectors"
)

const (
	pongReply     = "Pong! 🏓"
	greetingReply = "Hi! 👋 Ask me about a project, or try /help."
	busyReply     = "⚠️ The service is busy right now, please try again later."
	helpReply     = `I can chat about tech projects and dig into GitHub repos.

Commands:
/ping — check that I'm alive
/deep <owner/repo or name> — detailed report on a repository
/help — this message

Anything else is answered conversationally.`
)

// ProjectLookup is the search/fetch collaborator behind /deep.
type ProjectLookup interface {
	FetchProject(ctx context.Context, repoName string) (*collectors.Project, error)
	SearchRepository(ctx context.Context, query string) (*collectors.Project, error)
}

// Router matches normalized text against the fixed command table.
// Unmatched text falls through to the conversational path.
type Router struct {
	lookup ProjectLookup
}

// NewRouter builds a command router.
func NewRouter(lookup ProjectLookup) *Router {
	return &Router{lookup: lookup}
}

// Route dispatches text to a command handler. It returns false when the
// text matches no command; the caller then takes the conversational
// path. A matched command always emits at least one reply through send.
func (r *Router) Route(ctx context.Context, text string, send func(string) error) bool {
	switch {
	case text == "/ping":
		send(pongReply)
		return true
	case text == "/help":
		send(helpReply)
		return true
	case strings.HasPrefix(text, "/deep"):
		r.handleDeep(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/deep")), send)
		return true
	}
	return false
}

// handleDeep looks up a repository and replies with a report. An
// "owner/name" argument fetches directly; a bare name goes through
// fuzzy search.
func (r *Router) handleDeep(ctx context.Context, arg string, send func(string) error) {
	if arg == "" {
		send("Usage: /deep <owner/repo or project name>")
		return
	}

	send(fmt.Sprintf("🔍 Looking up %s, one moment...", arg))

	var (
		project *collectors.Project
		err     error
	)
	if strings.Contains(arg, "/") {
		project, err = r.lookup.FetchProject(ctx, arg)
	} else {
		project, err = r.lookup.SearchRepository(ctx, arg)
	}
	if err != nil {
		send(busyReply)
		return
	}
	if project == nil {
		send(fmt.Sprintf("Couldn't find a repository matching %q. Try the full owner/repo name.", arg))
		return
	}

	send(formatProjectReport(project))
}

func formatProjectReport(p *collectors.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 %s\n%s\n\n", p.Name, p.URL)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Description)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", p.Language)
	}
	fmt.Fprintf(&b, "Stars: %d  Forks: %d\n", p.Stars, p.Forks)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Created: %s\n", p.CreatedAt.Format("2006-01-02"))
	}
	if p.Readme != "" {
		fmt.Fprintf(&b, "\n--- README ---\n%s", p.Readme)
	}
	return strings.TrimRight(b.String(), "\n")
}
