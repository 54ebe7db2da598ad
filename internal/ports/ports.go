package ports

import (
	"context"
	"time"

	"MemeCurator/internal/domain"
)

// CandidateSource pulls a ranked candidate pool from configured feeds.
type CandidateSource interface {
	Fetch(ctx context.Context) ([]domain.Candidate, error)
}

// ContentFetcher resolves the binary payload referenced by a candidate.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Content, error)
}

// HistoryStore persists cross-cycle state for deduplication and exclusions.
type HistoryStore interface {
	Load(ctx context.Context) (domain.History, error)
	Save(ctx context.Context, history domain.History) error
}

// Evaluator judges a candidate against acceptance criteria.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Verdict, error)
}

// FeedbackSource harvests negative reactions from the destination channel.
type FeedbackSource interface {
	RecentDislikes(ctx context.Context, channelID string) ([]string, error)
}

// Publisher delivers a winning item to the destination channel.
type Publisher interface {
	Publish(ctx context.Context, channelID string, item domain.ScoredItem) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
