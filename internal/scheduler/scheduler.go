package scheduler

import (
	"context"
	"log/slog"
	"time"

	"daily_publisher/internal/domain"
)

// Runner exposes the stored schedule and the scheduled run.
type Runner interface {
	NextRun(ctx context.Context) (*time.Time, error)
	RunScheduled(ctx context.Context) (*domain.RunResult, error)
}

// Scheduler polls the stored next-run instant and triggers a scheduled run
// once it is due.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time

	lastFired time.Time
	retryAt   time.Time
}

// staleRetryPolls is how many poll intervals pass before an instant that was
// fired but never replaced is fired again.
const staleRetryPolls = 15

func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		retryDelay: staleRetryPolls * interval,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check fires a run when the stored instant has passed. An instant already
// fired is only fired again once retryDelay has elapsed, which happens when
// the run could not persist a new schedule.
func (s *Scheduler) check(ctx context.Context) {
	next, err := s.runner.NextRun(ctx)
	if err != nil {
		s.logger.Error("failed to load schedule", "error", err)
		return
	}
	now := s.now()
	if next == nil || next.After(now) {
		return
	}
	if next.Equal(s.lastFired) {
		if now.Before(s.retryAt) {
			return
		}
		s.logger.Warn("schedule was not advanced, retrying", "planned_at", next.Format(time.RFC3339))
	}

	s.lastFired = *next
	s.retryAt = now.Add(s.retryDelay)
	s.logger.Info("scheduled run due", "planned_at", next.Format(time.RFC3339))

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.runner.RunScheduled(runCtx); err != nil {
		s.logger.Warn("scheduled run did not publish", "reason", domain.ReasonOf(err))
	}
}
