package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MemeCurator/internal/domain"
)

func TestPacerSpacesCalls(t *testing.T) {
	clock := newFakeClock()
	var waits []time.Duration

	p := NewPacer(8*time.Second, false)
	p.now = clock.Now
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		clock.Advance(d)
		return nil
	}

	require.NoError(t, p.Wait(context.Background(), true))
	assert.Empty(t, waits, "first call without paceFirst goes straight through")

	clock.Advance(2 * time.Second)
	require.NoError(t, p.Wait(context.Background(), false))
	assert.Equal(t, []time.Duration{6 * time.Second}, waits)

	clock.Advance(time.Minute)
	require.NoError(t, p.Wait(context.Background(), false))
	assert.Len(t, waits, 1, "enough time already passed")
}

func TestPacerPaceFirst(t *testing.T) {
	var waits []time.Duration
	p := instantPacer(10*time.Second, true, &waits)

	require.NoError(t, p.Wait(context.Background(), true))
	assert.Equal(t, []time.Duration{10 * time.Second}, waits)
}

func TestPacerDisabledAndCancelled(t *testing.T) {
	var nilPacer *Pacer
	require.NoError(t, nilPacer.Wait(context.Background(), true))
	require.NoError(t, NewPacer(0, true).Wait(context.Background(), true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPacer(time.Hour, true).Wait(ctx, true)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluatedSelectionCancelledPacingSkipsRest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eval := &scriptedEvaluator{}
	policy := &EvaluatedSelection{
		Evaluator: eval,
		Content:   idContent{},
		Pacer:     NewPacer(time.Hour, true),
		BatchSize: 5,
		Threshold: 7,
	}

	sel := policy.Select(ctx, discardLogger(), []domain.Candidate{candidate("a", 2), candidate("b", 1)}, nil)

	assert.Equal(t, -1, sel.Winner)
	assert.Empty(t, eval.Calls())
	for _, item := range sel.Items {
		assert.Equal(t, domain.StatusSkipped, item.Status)
	}
}

// slowContent advances the shared clock as if each download took delay.
type slowContent struct {
	clock *fakeClock
	delay time.Duration
}

func (c slowContent) Fetch(_ context.Context, url string) (domain.Content, error) {
	c.clock.Advance(c.delay)
	return domain.Content{Data: []byte(url), MIMEType: "image/png"}, nil
}

type timedEvaluator struct {
	clock *fakeClock
	at    []time.Time
}

func (e *timedEvaluator) Evaluate(context.Context, domain.EvaluationRequest) (domain.Verdict, error) {
	e.at = append(e.at, e.clock.Now())
	return domain.Verdict{Acceptable: true, Score: 1, Explanation: "meh"}, nil
}

func TestEvaluatedSelectionSlowDownloadKeepsEvaluatorGap(t *testing.T) {
	const interval = 8 * time.Second
	clock := newFakeClock()

	pacer := NewPacer(interval, false)
	pacer.now = clock.Now
	pacer.sleep = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}

	eval := &timedEvaluator{clock: clock}
	policy := &EvaluatedSelection{
		Evaluator: eval,
		Content:   slowContent{clock: clock, delay: 5 * time.Second},
		Pacer:     pacer,
		BatchSize: 3,
		Threshold: 7,
	}

	pool := []domain.Candidate{candidate("a", 3), candidate("b", 2), candidate("c", 1)}
	sel := policy.Select(context.Background(), discardLogger(), pool, nil)

	assert.Equal(t, -1, sel.Winner)
	require.Len(t, eval.at, 3)
	for i := 1; i < len(eval.at); i++ {
		gap := eval.at[i].Sub(eval.at[i-1])
		assert.GreaterOrEqual(t, gap, interval, "gap between evaluator calls %d and %d", i-1, i)
	}
}

func TestPacerCancelledWaitReturnsSlot(t *testing.T) {
	clock := newFakeClock()
	p := NewPacer(8*time.Second, false)
	p.now = clock.Now

	var waits []time.Duration
	fail := true
	p.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		if fail {
			return context.Canceled
		}
		clock.Advance(d)
		return nil
	}

	require.NoError(t, p.Wait(context.Background(), false))
	require.ErrorIs(t, p.Wait(context.Background(), false), context.Canceled)

	fail = false
	require.NoError(t, p.Wait(context.Background(), false))
	assert.Equal(t, []time.Duration{8 * time.Second, 8 * time.Second}, waits, "cancelled reservation does not push later calls back")
}
