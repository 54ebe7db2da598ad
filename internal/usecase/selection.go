package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

// Selection is the outcome of a policy run: the items it touched and the
// index of the winner in Items, or -1 when nothing qualified.
type Selection struct {
	Items  []domain.ScoredItem
	Winner int
}

// SelectionPolicy chooses at most one winner from a fresh, ranked pool.
type SelectionPolicy interface {
	Name() string
	Select(ctx context.Context, logger *slog.Logger, pool []domain.Candidate, avoid []string) Selection
}

// EvaluatedSelection walks the top of the pool in rank order, evaluating one
// candidate at a time and stopping at the first verdict that passes.
type EvaluatedSelection struct {
	Evaluator   ports.Evaluator
	Content     ports.ContentFetcher
	Pacer       *Pacer
	BatchSize   int
	Threshold   float64
	CallTimeout time.Duration
}

func (s *EvaluatedSelection) Name() string { return "evaluated" }

func (s *EvaluatedSelection) Select(ctx context.Context, logger *slog.Logger, pool []domain.Candidate, avoid []string) Selection {
	if logger == nil {
		logger = slog.Default()
	}

	size := s.BatchSize
	if size <= 0 || size > len(pool) {
		size = len(pool)
	}

	items := make([]domain.ScoredItem, size)
	for i := range items {
		items[i] = domain.NewScoredItem(pool[i])
	}

	winner := -1
	halted := false
	evaluated := 0
	for i := range items {
		item := &items[i]
		if halted || winner >= 0 {
			_ = item.Transition(domain.StatusSkipped)
			continue
		}

		content, err := s.fetchContent(ctx, item.Candidate.URL)
		if err != nil {
			item.Err = err.Error()
			_ = item.Transition(domain.StatusFailed)
			logger.Warn("failed to load candidate image", "id", item.Candidate.ID, "error", err)
			continue
		}

		// the pacing slot is taken after the download so its duration never
		// shortens the gap between evaluator calls
		if err := s.Pacer.Wait(ctx, evaluated == 0); err != nil {
			logger.Warn("pacing interrupted", "error", err)
			_ = item.Transition(domain.StatusSkipped)
			halted = true
			continue
		}
		evaluated++

		_ = item.Transition(domain.StatusAnalyzing)
		logger.Info("analyzing candidate", "id", item.Candidate.ID, "title", item.Candidate.Title)

		verdict, err := s.evaluate(ctx, domain.EvaluationRequest{
			Content: content,
			Title:   item.Candidate.Title,
			Avoid:   avoid,
		})
		if err != nil {
			fallback := domain.TechnicalErrorVerdict(err)
			item.Verdict = &fallback
			item.Err = err.Error()
			_ = item.Transition(domain.StatusRejected)
			logger.Warn("evaluation failed", "id", item.Candidate.ID, "error", err)
			if domain.KindOf(err) == domain.KindQuota || errors.Is(err, context.Canceled) {
				halted = true
			}
			continue
		}

		item.Verdict = &verdict
		if verdict.Passes(s.Threshold) {
			_ = item.Transition(domain.StatusAnalyzed)
			winner = i
			logger.Info("candidate accepted", "id", item.Candidate.ID, "score", verdict.Score)
			continue
		}

		_ = item.Transition(domain.StatusRejected)
		reason := verdict.RefusalReason
		if reason == "" {
			reason = "Low score"
		}
		logger.Info("candidate rejected", "id", item.Candidate.ID, "score", verdict.Score, "reason", reason)
	}

	return Selection{Items: items, Winner: winner}
}

func (s *EvaluatedSelection) fetchContent(ctx context.Context, url string) (domain.Content, error) {
	if s.Content == nil {
		return domain.Content{}, domain.NewAdapterError("content", domain.KindConfig, errors.New("no content fetcher configured"))
	}
	ctx, cancel := withCallTimeout(ctx, s.CallTimeout)
	defer cancel()
	return s.Content.Fetch(ctx, url)
}

// evaluate isolates the cycle from evaluator panics.
func (s *EvaluatedSelection) evaluate(ctx context.Context, req domain.EvaluationRequest) (verdict domain.Verdict, err error) {
	if s.Evaluator == nil {
		return domain.Verdict{}, domain.NewAdapterError("evaluate", domain.KindConfig, errors.New("no evaluator configured"))
	}

	defer func() {
		if r := recover(); r != nil {
			err = domain.NewAdapterError("evaluate", domain.KindUnknown, fmt.Errorf("evaluator panic: %v", r))
		}
	}()

	ctx, cancel := withCallTimeout(ctx, s.CallTimeout)
	defer cancel()
	return s.Evaluator.Evaluate(ctx, req)
}

// TopRankedSelection publishes the highest-ranked fresh candidate without
// consulting an evaluator.
type TopRankedSelection struct{}

func (TopRankedSelection) Name() string { return "top" }

func (TopRankedSelection) Select(_ context.Context, logger *slog.Logger, pool []domain.Candidate, _ []string) Selection {
	if len(pool) == 0 {
		return Selection{Winner: -1}
	}

	item := domain.NewScoredItem(pool[0])
	_ = item.Transition(domain.StatusAnalyzed)
	if logger != nil {
		logger.Info("top-ranked candidate chosen", "id", item.Candidate.ID, "ups", item.Candidate.Ups)
	}
	return Selection{Items: []domain.ScoredItem{item}, Winner: 0}
}

func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
