package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

type outcome[T any] struct {
	val T
	err error
}

// Call runs fn under a deadline of timeout and returns its value. A
// non-positive timeout calls fn directly. Running out of time yields an
// error wrapping ErrTimeout and context.DeadlineExceeded even if fn has not
// returned yet; fn keeps running in the background until it notices its
// cancelled context. Cancellation of ctx is reported as ctx's own error.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	var zero T
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn(bounded)
		ch <- outcome[T]{val: v, err: err}
	}()

	select {
	case o := <-ch:
		if o.err == nil {
			return o.val, nil
		}
		if ctx.Err() == nil && errors.Is(bounded.Err(), context.DeadlineExceeded) {
			return zero, expired(name, timeout)
		}
		return zero, o.err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, err)
		}
		return zero, expired(name, timeout)
	}
}

// WithTimeout is Call for functions without a result.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, timeout, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func expired(name string, timeout time.Duration) error {
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
}
