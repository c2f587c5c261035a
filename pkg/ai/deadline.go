package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrDeadlineExceeded = errors.New("ai call deadline exceeded")

// CallWithDeadline runs fn under its own deadline derived from ctx.
// When the deadline fires first the caller gets ErrDeadlineExceeded and fn's
// context is cancelled; cancellation of ctx itself is reported as ctx.Err().
func CallWithDeadline[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %v", ErrDeadlineExceeded, d, r.err)
		}
		return r.val, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrDeadlineExceeded, d)
	}
}
