package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"daily_publisher/internal/domain"
)

type fakeRunner struct {
	next    *time.Time
	nextErr error
	runs    int
	runErr  error
}

func (f *fakeRunner) NextRun(context.Context) (*time.Time, error) {
	return f.next, f.nextErr
}

func (f *fakeRunner) RunScheduled(context.Context) (*domain.RunResult, error) {
	f.runs++
	if f.runErr != nil {
		return domain.FailedRun(domain.TriggerScheduled, f.runErr), f.runErr
	}
	return &domain.RunResult{Success: true, Trigger: domain.TriggerScheduled}, nil
}

func newTestScheduler(runner Runner, now time.Time) *Scheduler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewScheduler(runner, time.Minute, time.Minute, logger)
	s.now = func() time.Time { return now }
	return s
}

func TestCheck(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 0, 30, 0, time.UTC)
	due := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	later := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		runner   *fakeRunner
		wantRuns int
	}{
		{name: "due", runner: &fakeRunner{next: &due}, wantRuns: 1},
		{name: "not yet due", runner: &fakeRunner{next: &later}, wantRuns: 0},
		{name: "nothing planned", runner: &fakeRunner{}, wantRuns: 0},
		{name: "schedule unreadable", runner: &fakeRunner{nextErr: errors.New("db down")}, wantRuns: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(tt.runner, now)

			s.check(context.Background())

			assert.Equal(t, tt.wantRuns, tt.runner.runs)
		})
	}
}

func TestCheck_SameInstantFiresOnce(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 5, 0, 0, time.UTC)
	due := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	runner := &fakeRunner{next: &due, runErr: domain.ErrNotConnected}
	s := newTestScheduler(runner, now)

	s.check(context.Background())
	s.check(context.Background())

	assert.Equal(t, 1, runner.runs)
}

func TestCheck_StaleInstantRetriedAfterDelay(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 5, 0, 0, time.UTC)
	due := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	runner := &fakeRunner{next: &due, runErr: errors.New("store unavailable")}
	s := newTestScheduler(runner, now)
	s.now = func() time.Time { return now }

	s.check(context.Background())
	assert.Equal(t, 1, runner.runs)

	now = now.Add(s.retryDelay - time.Second)
	s.check(context.Background())
	assert.Equal(t, 1, runner.runs)

	now = now.Add(time.Second)
	s.check(context.Background())
	assert.Equal(t, 2, runner.runs)
}

func TestStart_StopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(runner, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
