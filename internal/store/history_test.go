package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistory_MarkAndSeen(t *testing.T) {
	h := openTestHistory(t)

	seen, err := h.Seen("acme/rocket")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("Seen on empty store = true, want false")
	}

	if err := h.MarkSeen([]string{"acme/rocket", "acme/glider"}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"acme/rocket", "acme/glider"} {
		seen, err := h.Seen(name)
		if err != nil {
			t.Fatal(err)
		}
		if !seen {
			t.Errorf("Seen(%q) = false after MarkSeen", name)
		}
	}
}

func TestHistory_PruneExpired(t *testing.T) {
	h := openTestHistory(t)

	// Record with a clock 40 days in the past, then prune with the real
	// clock: the entry is outside the 30-day retention.
	h.now = func() time.Time { return time.Now().AddDate(0, 0, -40) }
	if err := h.MarkSeen([]string{"acme/ancient"}); err != nil {
		t.Fatal(err)
	}

	h.now = time.Now
	if err := h.prune(); err != nil {
		t.Fatal(err)
	}

	seen, err := h.Seen("acme/ancient")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("expired entry survived prune")
	}
}

func TestHistory_MarkSeenRefreshes(t *testing.T) {
	h := openTestHistory(t)

	if err := h.MarkSeen([]string{"acme/rocket"}); err != nil {
		t.Fatal(err)
	}
	// Re-marking must not error on the primary key.
	if err := h.MarkSeen([]string{"acme/rocket"}); err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
}
