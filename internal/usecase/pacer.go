package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces evaluator calls so consecutive calls are at least interval
// apart. With paceFirst the first call of every batch waits a full interval.
// Wait must be called immediately before the paced call.
type Pacer struct {
	interval  time.Duration
	paceFirst bool

	mu      sync.Mutex
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewPacer builds a pacer; a non-positive interval disables waiting.
func NewPacer(interval time.Duration, paceFirst bool) *Pacer {
	p := &Pacer{
		interval:  interval,
		paceFirst: paceFirst,
		now:       time.Now,
		sleep:     sleepContext,
	}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p
}

// Wait blocks until the next call is allowed or ctx is done. A cancelled wait
// gives its slot back.
func (p *Pacer) Wait(ctx context.Context, firstInBatch bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.limiter == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	at := now
	if firstInBatch && p.paceFirst {
		// reserving one interval ahead makes this call wait the whole interval
		at = now.Add(p.interval)
	}

	r := p.limiter.ReserveN(at, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(p.now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
