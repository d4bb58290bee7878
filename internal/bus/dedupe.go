package bus

import "sync"

// DefaultDedupeCapacity bounds the dedupe cache. Redelivery windows are
// short, so a few hundred retained IDs is plenty.
const DefaultDedupeCapacity = 500

// DedupeCache is a bounded set of recently seen message IDs. It gates
// platform redeliveries: the first TestAndSet for an ID records it, every
// later call reports it as seen until the ID ages out of the cache.
//
// Eviction is deliberately coarse: when the cache grows past its capacity
// the oldest half is removed in one batch, tracked by an insertion
// sequence counter rather than per-entry timestamps. This keeps inserts
// O(1) amortized; recency precision doesn't matter because duplicates
// only arrive within a short redelivery window.
//
// Safe for concurrent use. State is not persisted across restarts.
type DedupeCache struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	entries  map[string]uint64 // message_id → insertion sequence
}

// NewDedupeCache creates a cache holding at most capacity IDs.
// capacity <= 0 selects DefaultDedupeCapacity.
func NewDedupeCache(capacity int) *DedupeCache {
	if capacity <= 0 {
		capacity = DefaultDedupeCapacity
	}
	return &DedupeCache{
		capacity: capacity,
		entries:  make(map[string]uint64),
	}
}

// TestAndSet atomically checks and records id. It returns true if the id
// was already present (duplicate — caller should drop the event), false
// if it was recorded now.
func (c *DedupeCache) TestAndSet(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return true
	}

	c.seq++
	c.entries[id] = c.seq

	if len(c.entries) > c.capacity {
		c.evictOldestLocked(c.capacity / 2)
	}
	return false
}

// Len returns the current number of retained IDs.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the n entries with the lowest sequence
// numbers. Caller holds c.mu.
func (c *DedupeCache) evictOldestLocked(n int) {
	if n <= 0 {
		return
	}
	// All sequences in [minSeq, c.seq] are live; entries inserted before
	// the cutoff are the oldest n.
	minSeq := c.seq - uint64(len(c.entries)) + 1
	cutoff := minSeq + uint64(n)
	for id, seq := range c.entries {
		if seq < cutoff {
			delete(c.entries, id)
		}
	}
}
