// Package scheduler runs the daily report pipeline on a cron
// expression, ticking once per minute.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// Job is the work the scheduler fires when the expression is due.
type Job func(ctx context.Context) error

// Scheduler fires a single job on a five-field cron expression. A tick
// that comes due while the previous run is still in flight is skipped.
type Scheduler struct {
	expr string
	job  Job
	log  *slog.Logger
	gron *gronx.Gronx

	mu      sync.Mutex
	running bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New validates the expression and builds a Scheduler.
func New(expr string, job Job, log *slog.Logger) (*Scheduler, error) {
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{
		expr:   expr,
		job:    job,
		log:    log,
		gron:   gron,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start runs the tick loop until Stop is called or ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)

	if next, err := gronx.NextTick(s.expr, false); err == nil {
		s.log.Info("scheduler started", "cron", s.expr, "next_run", next.Format(time.RFC3339))
	}
}

// Stop halts the tick loop and waits for it to exit. An in-flight job
// keeps running to completion.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	// Align to the next minute boundary so IsDue sees each minute once.
	wait := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))
	select {
	case <-time.After(wait):
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.tick(ctx, time.Now())
	for {
		select {
		case now := <-ticker.C:
			s.tick(ctx, now)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	due, err := s.gron.IsDue(s.expr, now)
	if err != nil || !due {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous run still in flight, skipping", "cron", s.expr)
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		start := time.Now()
		if err := s.job(ctx); err != nil {
			s.log.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
			return
		}
		s.log.Info("scheduled run finished", "elapsed", time.Since(start))
	}()
}
