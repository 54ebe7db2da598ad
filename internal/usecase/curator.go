package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

// CuratorDeps wires the driven adapters into the curation cycle.
type CuratorDeps struct {
	Source    ports.CandidateSource
	History   ports.HistoryStore
	Feedback  ports.FeedbackSource
	Publisher ports.Publisher
	Policy    SelectionPolicy
	Logger    *slog.Logger
}

// CuratorOptions holds the per-deployment knobs of a cycle.
type CuratorOptions struct {
	ChannelID      string
	ExclusionCap   int
	RecordRejected bool
	CallTimeout    time.Duration
	// Preflight reports missing configuration before any state is touched.
	Preflight func() error
	Now       func() time.Time
}

// CycleReport summarises one run for logs and the status API.
type CycleReport struct {
	ID            string              `json:"id"`
	Policy        string              `json:"policy"`
	StartedAt     time.Time           `json:"startedAt"`
	FinishedAt    time.Time           `json:"finishedAt"`
	PoolSize      int                 `json:"poolSize"`
	FreshCount    int                 `json:"freshCount"`
	Items         []domain.ScoredItem `json:"items"`
	Winner        *domain.ScoredItem  `json:"winner,omitempty"`
	Posted        bool                `json:"posted"`
	NewExclusions int                 `json:"newExclusions"`
	Error         string              `json:"error,omitempty"`
}

// Curator runs curation cycles. At most one cycle runs at a time.
type Curator struct {
	source    ports.CandidateSource
	history   ports.HistoryStore
	feedback  ports.FeedbackSource
	publisher ports.Publisher
	policy    SelectionPolicy
	logger    *slog.Logger
	opts      CuratorOptions

	running atomic.Bool
	last    atomic.Pointer[CycleReport]
}

// NewCurator constructs the orchestration component.
func NewCurator(deps CuratorDeps, opts CuratorOptions) *Curator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ExclusionCap <= 0 {
		opts.ExclusionCap = domain.DefaultExclusionCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	policy := deps.Policy
	if policy == nil {
		policy = TopRankedSelection{}
	}

	return &Curator{
		source:    deps.Source,
		history:   deps.History,
		feedback:  deps.Feedback,
		publisher: deps.Publisher,
		policy:    policy,
		logger:    logger,
		opts:      opts,
	}
}

// Running reports whether a cycle is in flight.
func (c *Curator) Running() bool {
	return c.running.Load()
}

// LastReport returns the report of the most recently finished cycle.
func (c *Curator) LastReport() (CycleReport, bool) {
	r := c.last.Load()
	if r == nil {
		return CycleReport{}, false
	}
	return *r, true
}

// RunCycle executes one fetch, dedupe, select, publish and persist pass.
// A call made while another cycle is running returns domain.ErrCycleInProgress.
func (c *Curator) RunCycle(ctx context.Context) (CycleReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return CycleReport{}, domain.ErrCycleInProgress
	}
	defer c.running.Store(false)

	report := CycleReport{
		ID:        uuid.NewString(),
		Policy:    c.policy.Name(),
		StartedAt: c.opts.Now(),
	}
	logger := c.logger.With("cycle_id", report.ID)

	err := c.run(ctx, logger, &report)
	report.FinishedAt = c.opts.Now()
	if err != nil {
		report.Error = err.Error()
	}
	stored := report
	c.last.Store(&stored)

	logger.Info("cycle finished",
		"posted", report.Posted,
		"evaluated", len(report.Items),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, err
}

func (c *Curator) run(ctx context.Context, logger *slog.Logger, report *CycleReport) error {
	logger.Info("starting curation cycle", "policy", report.Policy)

	if err := c.preflight(); err != nil {
		logger.Error("cycle aborted", "error", err)
		return err
	}

	history, err := c.history.Load(ctx)
	if err != nil {
		logger.Error("failed to load history", "error", err)
		return fmt.Errorf("load history: %w", err)
	}
	working := history.Clone()
	report.NewExclusions = c.syncFeedback(ctx, logger, &working)

	pool, err := c.source.Fetch(ctx)
	if err != nil {
		logger.Warn("candidate fetch failed", "error", err)
		pool = nil
	}
	report.PoolSize = len(pool)

	fresh := freshCandidates(pool, working)
	report.FreshCount = len(fresh)
	logger.Info("candidates fetched", "pool", len(pool), "fresh", len(fresh))

	if len(fresh) == 0 {
		logger.Info("no fresh candidates")
		return c.persist(ctx, logger, working)
	}

	selection := c.policy.Select(ctx, logger, fresh, working.DislikedTopics)
	report.Items = selection.Items

	if c.opts.RecordRejected {
		c.recordRejected(&working, selection.Items)
	}

	if selection.Winner < 0 || selection.Winner >= len(report.Items) {
		logger.Info("no suitable candidate in this batch")
		return c.persist(ctx, logger, working)
	}

	winner := &report.Items[selection.Winner]
	if err := c.publish(ctx, *winner); err != nil {
		winner.Err = err.Error()
		_ = winner.Transition(domain.StatusFailed)
		logger.Error("failed to publish winner", "id", winner.Candidate.ID, "error", err)
	} else {
		now := c.opts.Now()
		winner.PostedAt = now
		_ = winner.Transition(domain.StatusPosted)
		working.MarkHandled(winner.Candidate.ID)
		working.LastRunDate = &now
		report.Posted = true
		logger.Info("winner published", "id", winner.Candidate.ID, "title", winner.Candidate.Title)
	}

	chosen := *winner
	report.Winner = &chosen
	return c.persist(ctx, logger, working)
}

func (c *Curator) preflight() error {
	if c.opts.Preflight != nil {
		if err := c.opts.Preflight(); err != nil {
			return err
		}
	}

	var missing []error
	if c.source == nil {
		missing = append(missing, errors.New("candidate source"))
	}
	if c.history == nil {
		missing = append(missing, errors.New("history store"))
	}
	if c.publisher == nil {
		missing = append(missing, errors.New("publisher"))
	}
	if c.opts.ChannelID == "" {
		missing = append(missing, errors.New("channel id"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrMissingConfig, errors.Join(missing...))
	}
	return nil
}

// syncFeedback folds recent negative reactions into the exclusion list.
// Failures are logged and otherwise ignored.
func (c *Curator) syncFeedback(ctx context.Context, logger *slog.Logger, history *domain.History) int {
	if c.feedback == nil {
		return 0
	}

	callCtx, cancel := withCallTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	topics, err := c.feedback.RecentDislikes(callCtx, c.opts.ChannelID)
	if err != nil {
		logger.Warn("feedback sync failed", "error", err)
		return 0
	}

	added := history.MergeExclusions(topics, c.opts.ExclusionCap)
	if added > 0 {
		logger.Info("learned new dislikes", "added", added, "exclusions", len(history.DislikedTopics))
	}
	return added
}

func (c *Curator) publish(ctx context.Context, item domain.ScoredItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewAdapterError("publish", domain.KindUnknown, fmt.Errorf("publisher panic: %v", r))
		}
	}()

	callCtx, cancel := withCallTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	return c.publisher.Publish(callCtx, c.opts.ChannelID, item)
}

// recordRejected marks candidates that were judged and turned down so later
// cycles skip them. Technical evaluation failures stay eligible.
func (c *Curator) recordRejected(history *domain.History, items []domain.ScoredItem) {
	for _, item := range items {
		judged := item.Status == domain.StatusRejected && item.Err == ""
		if !judged && item.Status != domain.StatusFailed {
			continue
		}
		history.MarkHandled(item.Candidate.ID)
	}
}

// persist saves history exactly once per cycle. It runs detached from ctx
// cancellation so a shutdown does not leave a finished cycle unrecorded.
func (c *Curator) persist(ctx context.Context, logger *slog.Logger, history domain.History) error {
	if err := c.history.Save(context.WithoutCancel(ctx), history); err != nil {
		logger.Error("failed to save history", "error", err)
		return fmt.Errorf("save history: %w", err)
	}
	logger.Debug("history saved", "posted", len(history.PostedIDs), "exclusions", len(history.DislikedTopics))
	return nil
}

// freshCandidates drops handled identifiers and orders the rest by
// popularity, highest first.
func freshCandidates(pool []domain.Candidate, history domain.History) []domain.Candidate {
	if len(pool) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(history.PostedIDs))
	for _, id := range history.PostedIDs {
		seen[id] = struct{}{}
	}

	fresh := make([]domain.Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	slices.SortStableFunc(fresh, func(a, b domain.Candidate) int {
		return cmp.Compare(b.Ups, a.Ups)
	})
	return fresh
}
