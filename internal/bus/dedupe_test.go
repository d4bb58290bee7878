package bus

import (
	"fmt"
	"sync"
	"testing"
)

func TestDedupeCache_TestAndSet(t *testing.T) {
	c := NewDedupeCache(10)

	if c.TestAndSet("m1") {
		t.Error("first TestAndSet(m1) = true, want false")
	}
	if !c.TestAndSet("m1") {
		t.Error("second TestAndSet(m1) = false, want true")
	}
	if !c.TestAndSet("m1") {
		t.Error("third TestAndSet(m1) = false, want true")
	}
	if c.TestAndSet("m2") {
		t.Error("first TestAndSet(m2) = true, want false")
	}
}

func TestDedupeCache_EvictionBound(t *testing.T) {
	const capacity = 500
	c := NewDedupeCache(capacity)

	for i := 0; i <= capacity; i++ {
		c.TestAndSet(fmt.Sprintf("msg-%d", i))
	}

	n := c.Len()
	if n < capacity/2 || n > capacity {
		t.Errorf("after %d inserts cache holds %d entries, want [%d, %d]",
			capacity+1, n, capacity/2, capacity)
	}

	// The newest id survived the batch eviction.
	if !c.TestAndSet(fmt.Sprintf("msg-%d", capacity)) {
		t.Error("newest id was evicted, want retained")
	}
	// The oldest id was evicted and is recordable again.
	if c.TestAndSet("msg-0") {
		t.Error("oldest id still present after eviction")
	}
}

func TestDedupeCache_EvictionKeepsNewestHalf(t *testing.T) {
	c := NewDedupeCache(100)
	for i := 0; i < 101; i++ {
		c.TestAndSet(fmt.Sprintf("m%d", i))
	}
	// Oldest 50 gone, newest 51 retained.
	for i := 51; i <= 100; i++ {
		if !c.TestAndSet(fmt.Sprintf("m%d", i)) {
			t.Errorf("m%d evicted, want retained", i)
		}
	}
}

func TestDedupeCache_Concurrent(t *testing.T) {
	c := NewDedupeCache(1000)

	const goroutines = 16
	var wg sync.WaitGroup
	firsts := make([]int, goroutines)

	// All goroutines race on the same 100 ids; each id must be "new"
	// exactly once across the whole run.
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !c.TestAndSet(fmt.Sprintf("shared-%d", i)) {
					firsts[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range firsts {
		total += n
	}
	if total != 100 {
		t.Errorf("ids seen as new %d times, want exactly 100", total)
	}
}

func TestQueue_DropWhenFull(t *testing.T) {
	q := NewQueue(2)

	if !q.Enqueue(InboundEvent{MessageID: "a"}) {
		t.Fatal("enqueue a failed on empty queue")
	}
	if !q.Enqueue(InboundEvent{MessageID: "b"}) {
		t.Fatal("enqueue b failed")
	}
	if q.Enqueue(InboundEvent{MessageID: "c"}) {
		t.Error("enqueue c succeeded on full queue, want drop")
	}
	if q.Len() != 2 {
		t.Errorf("queue length = %d, want 2", q.Len())
	}
}

func TestQueue_DequeueAfterClose(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(InboundEvent{MessageID: "a"})
	q.Close()

	ctx := t.Context()
	ev, ok := q.Dequeue(ctx)
	if !ok || ev.MessageID != "a" {
		t.Fatalf("Dequeue = (%q, %v), want (a, true)", ev.MessageID, ok)
	}
	if _, ok := q.Dequeue(ctx); ok {
		t.Error("Dequeue on drained closed queue = true, want false")
	}
}
