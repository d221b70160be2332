package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily_publisher/internal/domain"
)

// classify wraps err with kind unless it already carries a known failure
// kind. Deadline expiry always maps to ErrTimeout.
func classify(err error, kind error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	if domain.Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
