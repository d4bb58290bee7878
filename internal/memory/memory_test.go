package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_HistoryBound(t *testing.T) {
	s := NewStore(10, time.Hour)

	for i := 0; i < 15; i++ {
		s.AddTurn("chat-1", RoleUser, fmt.Sprintf("msg %d", i))
	}

	turns := s.GetHistory("chat-1")
	if len(turns) != 10 {
		t.Fatalf("history length = %d, want 10", len(turns))
	}
	// The 10 most recent turns remain, oldest-first.
	for i, turn := range turns {
		want := fmt.Sprintf("msg %d", i+5)
		if turn.Content != want {
			t.Errorf("turns[%d].Content = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestStore_RolesPreserved(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.AddTurn("c", RoleUser, "hi")
	s.AddTurn("c", RoleAssistant, "hello!")

	turns := s.GetHistory("c")
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("roles = [%s, %s], want [user, assistant]", turns[0].Role, turns[1].Role)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore(10, time.Hour)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.AddTurn("stale", RoleUser, "old message")
	s.AddTurn("fresh", RoleUser, "will be touched")

	if s.Len() != 2 {
		t.Fatalf("store size = %d, want 2", s.Len())
	}

	// Advance past the TTL for "stale" only.
	current = current.Add(50 * time.Minute)
	s.AddTurn("fresh", RoleUser, "still active")
	current = current.Add(30 * time.Minute)

	if got := s.GetHistory("stale"); len(got) != 0 {
		t.Errorf("expired conversation returned %d turns, want 0", len(got))
	}
	if s.Len() != 1 {
		t.Errorf("store size after sweep = %d, want 1", s.Len())
	}
	if got := s.GetHistory("fresh"); len(got) != 2 {
		t.Errorf("fresh conversation returned %d turns, want 2", len(got))
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.AddTurn("c", RoleUser, "hi")
	s.Clear("c")

	if got := s.GetHistory("c"); len(got) != 0 {
		t.Errorf("cleared conversation returned %d turns, want 0", len(got))
	}
	if s.Len() != 0 {
		t.Errorf("store size = %d, want 0", s.Len())
	}
}

func TestStore_ReturnedSliceIsCopy(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.AddTurn("c", RoleUser, "original")

	turns := s.GetHistory("c")
	turns[0].Content = "mutated"

	if got := s.GetHistory("c"); got[0].Content != "original" {
		t.Error("mutating the returned slice leaked into the store")
	}
}

func TestStore_ConcurrentAddTurn(t *testing.T) {
	s := NewStore(50, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.AddTurn("shared", RoleUser, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	turns := s.GetHistory("shared")
	if len(turns) != 40 {
		t.Errorf("history length = %d, want 40 (no lost updates)", len(turns))
	}
}
