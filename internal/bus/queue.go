package bus

import (
	"context"
	"sync"
)

// DefaultQueueSize is the inbound queue bound. Events arriving while the
// queue is full are dropped, never buffered unboundedly.
const DefaultQueueSize = 128

// Queue is a bounded in-process queue between the ingress path and the
// worker pool. Enqueue never blocks: under a delivery storm the newest
// events are rejected so memory stays capped.
type Queue struct {
	ch        chan InboundEvent
	closeOnce sync.Once
}

// NewQueue creates a queue with the given capacity.
// size <= 0 selects DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan InboundEvent, size)}
}

// Enqueue offers an event to the queue. It returns false when the queue
// is full; the caller logs and drops the event.
func (q *Queue) Enqueue(ev InboundEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an event is available, the context is cancelled,
// or the queue is closed. The second return is false when no more
// events will arrive.
func (q *Queue) Dequeue(ctx context.Context) (InboundEvent, bool) {
	select {
	case ev, ok := <-q.ch:
		return ev, ok
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

// Close shuts the queue. Pending events are still delivered to Dequeue
// callers before they observe closure. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }
