// Package memory keeps bounded, TTL-expiring per-conversation history
// used as generation context for the chat bot.
package memory

import (
	"sync"
	"time"
)

// Turn is one exchanged message, tagged with who produced it.
type Turn struct {
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// conversation is owned exclusively by the Store; its turns never leave
// the store by reference.
type conversation struct {
	turns       []Turn
	lastUpdated time.Time
}

// Store is an in-memory conversation history manager. Each conversation
// keeps at most maxHistory turns, oldest-first, and is dropped wholesale
// once idle longer than the TTL. All operations serialize through one
// mutex so reads observe a consistent sweep-then-read snapshot.
type Store struct {
	mu         sync.Mutex
	convos     map[string]*conversation
	maxHistory int
	ttl        time.Duration
	now        func() time.Time // injectable for tests
}

// NewStore creates a store keeping up to maxHistory turns per
// conversation, expiring conversations idle longer than ttl.
// Non-positive arguments select 10 turns and one hour.
func NewStore(maxHistory int, ttl time.Duration) *Store {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		convos:     make(map[string]*conversation),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

// AddTurn appends a turn to the conversation, creating it lazily. The
// oldest turn is evicted once the history exceeds the configured bound.
func (s *Store) AddTurn(chatID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convos[chatID]
	if !ok {
		c = &conversation{}
		s.convos[chatID] = c
	}

	c.turns = append(c.turns, Turn{Role: role, Content: content, Timestamp: s.now()})
	if len(c.turns) > s.maxHistory {
		// Shift rather than reslice so the evicted turn is releasable.
		copy(c.turns, c.turns[len(c.turns)-s.maxHistory:])
		c.turns = c.turns[:s.maxHistory]
	}
	c.lastUpdated = s.now()
}

// GetHistory sweeps every expired conversation out of the store, then
// returns a copy of the turn sequence for chatID, oldest-first. The
// result is empty when the conversation is absent or just expired.
func (s *Store) GetHistory(chatID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	c, ok := s.convos[chatID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Clear removes a conversation entirely.
func (s *Store) Clear(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convos, chatID)
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convos)
}

// sweepLocked drops every conversation idle longer than the TTL.
// Caller holds s.mu.
func (s *Store) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, c := range s.convos {
		if c.lastUpdated.Before(cutoff) {
			delete(s.convos, id)
		}
	}
}
