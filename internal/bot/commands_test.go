package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/opsintel/intelbot/internal/collectors"
)

type fakeLookup struct {
	mu           sync.Mutex
	fetchCalls   []string
	searchCalls  []string
	project      *collectors.Project
	err          error
	searchResult *collectors.Project
}

func (f *fakeLookup) FetchProject(_ context.Context, repoName string) (*collectors.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, repoName)
	return f.project, f.err
}

func (f *fakeLookup) SearchRepository(_ context.Context, query string) (*collectors.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, query)
	return f.searchResult, f.err
}

type replyRecorder struct {
	mu      sync.Mutex
	replies []string
}

func (r *replyRecorder) send(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func (r *replyRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

func TestRoutePing(t *testing.T) {
	rec := &replyRecorder{}
	router := NewRouter(&fakeLookup{})

	if !router.Route(t.Context(), "/ping", rec.send) {
		t.Fatal("expected /ping to be handled")
	}
	got := rec.all()
	if len(got) != 1 || got[0] != "Pong! 🏓" {
		t.Errorf("replies = %q", got)
	}
}

func TestRouteHelp(t *testing.T) {
	rec := &replyRecorder{}
	router := NewRouter(&fakeLookup{})

	if !router.Route(t.Context(), "/help", rec.send) {
		t.Fatal("expected /help to be handled")
	}
	if got := rec.all(); len(got) != 1 || !strings.Contains(got[0], "/deep") {
		t.Errorf("replies = %q", got)
	}
}

func TestRouteFallsThrough(t *testing.T) {
	router := NewRouter(&fakeLookup{})
	if router.Route(t.Context(), "what is zig", (&replyRecorder{}).send) {
		t.Error("plain text should not be handled as a command")
	}
}

func TestDeepDirectFetch(t *testing.T) {
	lookup := &fakeLookup{project: &collectors.Project{
		Name:        "acme/rocket",
		URL:         "https://github.com/acme/rocket",
		Description: "A rocket launcher.",
		Language:    "Go",
		Stars:       42,
	}}
	rec := &replyRecorder{}
	router := NewRouter(lookup)

	router.Route(t.Context(), "/deep acme/rocket", rec.send)

	if len(lookup.fetchCalls) != 1 || lookup.fetchCalls[0] != "acme/rocket" {
		t.Errorf("fetch calls = %v", lookup.fetchCalls)
	}
	if len(lookup.searchCalls) != 0 {
		t.Errorf("search calls = %v, want none", lookup.searchCalls)
	}
	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want progress + report", len(got))
	}
	if !strings.Contains(got[1], "acme/rocket") || !strings.Contains(got[1], "Stars: 42") {
		t.Errorf("report = %q", got[1])
	}
}

func TestDeepFuzzySearch(t *testing.T) {
	lookup := &fakeLookup{searchResult: &collectors.Project{
		Name: "acme/rocket", URL: "https://github.com/acme/rocket",
	}}
	rec := &replyRecorder{}
	router := NewRouter(lookup)

	router.Route(t.Context(), "/deep rocket", rec.send)

	if len(lookup.searchCalls) != 1 || lookup.searchCalls[0] != "rocket" {
		t.Errorf("search calls = %v", lookup.searchCalls)
	}
	if len(lookup.fetchCalls) != 0 {
		t.Errorf("fetch calls = %v, want none", lookup.fetchCalls)
	}
}

func TestDeepNotFoundStillReplies(t *testing.T) {
	rec := &replyRecorder{}
	router := NewRouter(&fakeLookup{})

	router.Route(t.Context(), "/deep nosuchthing", rec.send)

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want progress + failure", len(got))
	}
	if !strings.Contains(got[1], "Couldn't find") {
		t.Errorf("failure reply = %q", got[1])
	}
}

func TestDeepCollaboratorErrorRepliesBusy(t *testing.T) {
	rec := &replyRecorder{}
	router := NewRouter(&fakeLookup{err: errors.New("github: 502")})

	router.Route(t.Context(), "/deep acme/rocket", rec.send)

	got := rec.all()
	if len(got) != 2 || got[1] != busyReply {
		t.Errorf("replies = %q", got)
	}
}

func TestDeepWithoutArgument(t *testing.T) {
	rec := &replyRecorder{}
	router := NewRouter(&fakeLookup{})

	router.Route(t.Context(), "/deep", rec.send)

	if got := rec.all(); len(got) != 1 || !strings.Contains(got[0], "Usage") {
		t.Errorf("replies = %q", got)
	}
}
