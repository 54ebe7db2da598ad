package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestIntervalSchedulerRunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	var runs atomic.Int32
	fired := make(chan struct{}, 16)
	s := NewIntervalScheduler(10*time.Millisecond, true)

	if err := s.Start(context.Background(), func(time.Time) {
		runs.Add(1)
		fired <- struct{}{}
	}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not fire (run %d)", i)
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job kept firing after Stop")
	}
}

func TestIntervalSchedulerStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour, false)
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cancel()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestIntervalSchedulerNilJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewIntervalScheduler(0, true)
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if s.interval != time.Hour {
		t.Fatalf("expected hourly default, got %v", s.interval)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}
