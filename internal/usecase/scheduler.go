package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

// Scheduler wires the interval driver with the curation cycle.
type Scheduler struct {
	driver  ports.Scheduler
	curator *Curator
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, curator *Curator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, curator: curator, logger: logger}
}

// Start registers the curator with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.curator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_, err := s.curator.RunCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCycleInProgress):
			s.logger.Debug("tick skipped, cycle still running", "trigger", trigger)
		default:
			s.logger.Error("scheduled cycle failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
