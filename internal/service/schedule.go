package service

import (
	"context"
	"fmt"
	"time"

	"daily_publisher/internal/domain"
)

// NextRun returns the next instant strictly after now at which cfg's daily
// publish time falls. It reports false while no source folder is configured.
func NextRun(cfg domain.AgentConfig, now time.Time) (time.Time, bool) {
	if !cfg.Configured() {
		return time.Time{}, false
	}

	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(),
		cfg.DailyPublishTime.Hour, cfg.DailyPublishTime.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, true
}

// Schedule persists the next planned run.
type Schedule struct {
	store Store
}

func NewSchedule(store Store) *Schedule {
	return &Schedule{store: store}
}

// Reschedule stores the next run for cfg, or clears it when cfg is unconfigured.
func (s *Schedule) Reschedule(ctx context.Context, cfg domain.AgentConfig, now time.Time) (*time.Time, error) {
	next, ok := NextRun(cfg, now)
	if !ok {
		if _, err := s.store.Delete(ctx, keySchedule); err != nil {
			return nil, fmt.Errorf("clear schedule: %w", err)
		}
		return nil, nil
	}

	if err := s.store.Set(ctx, keySchedule, next.Format(time.RFC3339), 0); err != nil {
		return nil, fmt.Errorf("store schedule: %w", err)
	}
	return &next, nil
}

// Next returns the stored next run, or nil when none is planned.
func (s *Schedule) Next(ctx context.Context) (*time.Time, error) {
	var raw string
	found, err := s.store.Get(ctx, keySchedule, &raw)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if !found {
		return nil, nil
	}

	next, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", raw, err)
	}
	next = next.UTC()
	return &next, nil
}
