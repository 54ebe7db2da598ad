package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"MemeCurator/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	pool []domain.Candidate
	err  error
}

func (s *stubSource) Fetch(context.Context) ([]domain.Candidate, error) {
	return append([]domain.Candidate(nil), s.pool...), s.err
}

// idContent hands the candidate URL back as payload so evaluators can key on it.
type idContent struct {
	fail map[string]bool
}

func (c idContent) Fetch(_ context.Context, url string) (domain.Content, error) {
	if c.fail[url] {
		return domain.Content{}, domain.NewAdapterError("content", domain.KindTransport, errors.New("404"))
	}
	return domain.Content{Data: []byte(url), MIMEType: "image/png"}, nil
}

type scriptedEvaluator struct {
	mu       sync.Mutex
	verdicts map[string]domain.Verdict
	errs     map[string]error
	panics   map[string]bool
	calls    []string
	avoid    [][]string
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, req domain.EvaluationRequest) (domain.Verdict, error) {
	id := string(req.Content.Data)

	e.mu.Lock()
	e.calls = append(e.calls, id)
	e.avoid = append(e.avoid, req.Avoid)
	e.mu.Unlock()

	if e.panics[id] {
		panic("evaluator blew up")
	}
	if err := e.errs[id]; err != nil {
		return domain.Verdict{}, err
	}
	if v, ok := e.verdicts[id]; ok {
		return v, nil
	}
	return domain.Verdict{Acceptable: true, Score: 1, Explanation: "meh"}, nil
}

func (e *scriptedEvaluator) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type recordingPublisher struct {
	mu      sync.Mutex
	err     error
	channel string
	items   []domain.ScoredItem
	block   chan struct{}
	entered chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, channelID string, item domain.ScoredItem) error {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channelID
	p.items = append(p.items, item)
	return p.err
}

func (p *recordingPublisher) Published() []domain.ScoredItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ScoredItem(nil), p.items...)
}

type stubFeedback struct {
	topics []string
	err    error
}

func (f stubFeedback) RecentDislikes(context.Context, string) ([]string, error) {
	return f.topics, f.err
}

type memoryHistory struct {
	mu      sync.Mutex
	state   domain.History
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newMemoryHistory(state domain.History) *memoryHistory {
	return &memoryHistory{state: state.Clone()}
}

func (m *memoryHistory) Load(context.Context) (domain.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return domain.History{}, m.loadErr
	}
	return m.state.Clone(), nil
}

func (m *memoryHistory) Save(_ context.Context, h domain.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = h.Clone()
	return nil
}

func (m *memoryHistory) Snapshot() domain.History {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// instantPacer records requested waits without sleeping.
func instantPacer(interval time.Duration, paceFirst bool, waits *[]time.Duration) *Pacer {
	p := NewPacer(interval, paceFirst)
	p.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return p
}

func candidate(id string, ups int) domain.Candidate {
	return domain.Candidate{
		ID:        id,
		Title:     "title " + id,
		URL:       id,
		Source:    "memes",
		Ups:       ups,
		Permalink: "https://reddit.com/r/memes/" + id,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
