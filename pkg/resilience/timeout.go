package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/newsdex/newsdex/pkg/errors"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. If fn does not return in time the result wraps
// ErrTimeout; a cancelled parent is reported as the parent's error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		if err != nil && timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("%s: %w (limit: %v): %w", name, apperrors.ErrTimeout, timeout, err)
		}
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, apperrors.ErrTimeout, timeout)
	}
}
