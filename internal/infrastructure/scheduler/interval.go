package scheduler

import (
	"context"
	"sync"
	"time"

	"MemeCurator/internal/ports"
)

// IntervalScheduler fires a job on a fixed interval using time.Ticker.
// Ticks that arrive while a job is still running are dropped by the ticker.
type IntervalScheduler struct {
	interval   time.Duration
	runOnStart bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; a non-positive interval means hourly.
func NewIntervalScheduler(interval time.Duration, runOnStart bool) *IntervalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &IntervalScheduler{interval: interval, runOnStart: runOnStart}
}

// Start begins ticking in a background goroutine.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		if s.runOnStart {
			job(time.Now())
		}
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for an in-flight job to return.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
