package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout gives a research run (or any other named unit of work) a
// wall-clock budget. fn gets a context that expires with the budget;
// WithTimeout returns as soon as that happens, so the caller can report
// which stage was running without waiting for a slow generator call to
// unwind. fn's late result is dropped.
//
// An expired budget wraps context.DeadlineExceeded. A cancelled parent is
// reported as the parent's error so callers can tell a client hang-up from
// a run that was too slow. A zero budget runs fn inline.
func WithTimeout(ctx context.Context, budget time.Duration, name string, fn func(ctx context.Context) error) error {
	if budget <= 0 {
		return fn(ctx)
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(runCtx) }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", name, err)
		}
		return fmt.Errorf("%s exceeded its %v budget: %w", name, budget, context.DeadlineExceeded)
	}
}
