package resilience

import (
	"context"
	"fmt"
	"time"
)

// Attempt runs a single attempt of op with its own deadline. When the limit
// passes first, Attempt returns a context.DeadlineExceeded error without
// waiting for fn, which sees its context cancelled. Cancellation of ctx
// itself is reported as such so that Do stops retrying.
func Attempt(ctx context.Context, op string, limit time.Duration, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: attempt exceeded %v: %w", op, limit, context.DeadlineExceeded)
	}
}
