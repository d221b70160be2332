package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"daily_publisher/internal/domain"
)

const leaseReleaseTimeout = 5 * time.Second

// Lease serializes runs. The mutex covers this process; the stored key covers
// other replicas sharing the store and expires if its holder crashes.
type Lease struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	mu sync.Mutex
}

func NewLease(store Store, ttl time.Duration, logger *slog.Logger) *Lease {
	return &Lease{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "lease"),
	}
}

// Acquire takes the lease or fails with ErrRunInProgress. The returned
// function releases it and is safe to call once.
func (l *Lease) Acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, domain.ErrRunInProgress
	}

	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, keyRunLease, token, l.ttl)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("acquire run lease: %w", err)
	}
	if !ok {
		l.mu.Unlock()
		return nil, domain.ErrRunInProgress
	}

	return func() {
		defer l.mu.Unlock()

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
		defer cancel()

		if _, err := l.store.CompareAndDelete(releaseCtx, keyRunLease, token); err != nil {
			l.logger.Error("failed to release run lease", "error", err)
		}
	}, nil
}
