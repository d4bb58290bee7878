package bot

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/opsintel/intelbot/internal/bus"
)

// DefaultWorkers is the worker pool size when the config leaves it
// unset.
const DefaultWorkers = 10

const convLockStripes = 64

// Dispatcher owns the ingress gate and the worker pool. The ingress
// path does only dedupe and enqueue-or-drop; everything else runs on a
// worker. Events for the same chat are serialized through a striped
// lock so memory writes stay in order.
type Dispatcher struct {
	queue   *bus.Queue
	dedupe  *bus.DedupeCache
	workers int
	process func(ctx context.Context, ev bus.InboundEvent)
	log     *slog.Logger

	convLocks [convLockStripes]sync.Mutex
	wg        sync.WaitGroup
}

// NewDispatcher builds a dispatcher. process is the per-event handler;
// it runs to completion once started, with no mid-flight cancellation.
func NewDispatcher(workers, queueSize, dedupeCapacity int, log *slog.Logger, process func(ctx context.Context, ev bus.InboundEvent)) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:   bus.NewQueue(queueSize),
		dedupe:  bus.NewDedupeCache(dedupeCapacity),
		workers: workers,
		process: process,
		log:     log,
	}
}

// Offer is the ingress path: dedupe gate, then enqueue-or-drop. It
// never blocks the caller.
func (d *Dispatcher) Offer(ev bus.InboundEvent) {
	if !ev.Valid() {
		d.log.Debug("event dropped: missing identifiers")
		return
	}
	if d.dedupe.TestAndSet(ev.MessageID) {
		d.log.Debug("event deduplicated", "message_id", ev.MessageID)
		return
	}
	if !d.queue.Enqueue(ev) {
		d.log.Warn("queue full, event dropped",
			"message_id", ev.MessageID, "chat_id", ev.ChatID)
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// the queue is closed.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Info("dispatcher started", "workers", d.workers)
}

// Stop closes the queue and waits for in-flight events to finish.
func (d *Dispatcher) Stop() {
	d.queue.Close()
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		ev, ok := d.queue.Dequeue(ctx)
		if !ok {
			return
		}
		d.handle(ctx, ev)
	}
}

// handle runs one event to completion. A panic in the handler is
// contained to this event; the worker returns to the pool.
func (d *Dispatcher) handle(ctx context.Context, ev bus.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while processing event",
				"message_id", ev.MessageID, "chat_id", ev.ChatID, "panic", r)
		}
	}()

	lock := &d.convLocks[stripeFor(ev.ChatID)]
	lock.Lock()
	defer lock.Unlock()

	d.process(ctx, ev)
}

func stripeFor(chatID string) int {
	h := fnv.New32a()
	h.Write([]byte(chatID))
	return int(h.Sum32() % convLockStripes)
}
