package source

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"MemeCurator/internal/config"
	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
	"MemeCurator/internal/scanner"
)

const defaultPoolSize = 20

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	feeds    []config.FeedConfig
	poolSize int
	filter   *CELFilter
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined feeds.
func NewStrategySource(reg *scanner.Registry, cfg config.SourcesConfig, filter *CELFilter, log *slog.Logger) *StrategySource {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &StrategySource{
		registry: reg,
		feeds:    cfg.Feeds,
		poolSize: poolSize,
		filter:   filter,
		logger:   log,
	}
}

// Fetch scans every feed concurrently and returns the merged pool ordered by
// descending Ups and capped to the pool size. A failing feed contributes nothing.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	s.debug("fetch candidates", "feeds", len(s.feeds))

	results := make([][]domain.Candidate, len(s.feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range s.feeds {
		g.Go(func() error {
			results[i] = s.scanFeed(gctx, feed)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := s.merge(results)
	s.debug("strategy source done", "pool", len(pool))
	return pool, nil
}

func (s *StrategySource) scanFeed(ctx context.Context, feed config.FeedConfig) []domain.Candidate {
	strategy, err := s.registry.Resolve(feed.Scanner)
	if err != nil {
		s.warn("feed skipped", "feed", feed.Name, "error", err)
		return nil
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		FeedName: feed.Name,
		Target:   feed.Target,
	})
	if err != nil {
		s.warn("feed failed", "feed", feed.Name, "scanner", feed.Scanner, "kind", domain.KindOf(err), "error", err)
		return nil
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = feed.Name
		}
	}
	s.debug("feed produced candidates", "feed", feed.Name, "count", len(results))
	return results
}

// merge is pure: dedupe (first seen wins), filter, stable sort, cap.
func (s *StrategySource) merge(results [][]domain.Candidate) []domain.Candidate {
	seen := map[string]struct{}{}
	var pool []domain.Candidate
	for _, batch := range results {
		for _, candidate := range batch {
			if _, ok := seen[candidate.ID]; ok {
				continue
			}
			seen[candidate.ID] = struct{}{}

			matched, err := s.filter.Match(candidate)
			if err != nil {
				s.warn("filter error, dropping candidate", "id", candidate.ID, "error", err)
				continue
			}
			if !matched {
				continue
			}
			pool = append(pool, candidate)
		}
	}

	slices.SortStableFunc(pool, func(a, b domain.Candidate) int {
		return cmp.Compare(b.Ups, a.Ups)
	})

	if len(pool) > s.poolSize {
		pool = pool[:s.poolSize]
	}
	return pool
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
