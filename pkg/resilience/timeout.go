package resilience

import (
	"context"
	"fmt"
	"time"
)

type result[T any] struct {
	val T
	err error
}

// WithTimeout runs fn under a context cancelled after timeout and returns
// its result. At the deadline it returns the zero T with an error wrapping
// context.DeadlineExceeded (or the parent's error) without waiting: fn keeps
// running until it observes the cancellation and its late result is
// dropped. fn must therefore hand its output back only through the return
// value. A timeout of zero or less runs fn directly.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timeoutCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}
