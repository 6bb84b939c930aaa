package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/errors"
)

// RetryConfig controls backoff. Only connection establishment is retried;
// build and query failures propagate unchanged.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable reports whether an error is worth another attempt. Nil
	// selects IsTransient.
	Retryable func(error) bool
}

// IsTransient rejects the errors that another attempt cannot fix.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrCorruptCache),
		errors.Is(err, apperrors.ErrIndexLoad),
		errors.Is(err, apperrors.ErrMissingCorpus),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// normalize fills zero values: 3 attempts, 100ms first delay, 10s cap.
func (c RetryConfig) normalize() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is exhausted. Waits use decorrelated jitter: each delay is
// drawn from [InitialDelay, 3*previous] and capped at MaxDelay.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.normalize()
	logger := slog.Default().With("component", "retry", "operation", name)

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.Retryable(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}

		delay = nextDelay(delay, cfg)
		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
	}
}

func nextDelay(prev time.Duration, cfg RetryConfig) time.Duration {
	upper := 3 * prev
	if upper <= cfg.InitialDelay {
		return min(cfg.InitialDelay, cfg.MaxDelay)
	}
	d := cfg.InitialDelay + rand.N(upper-cfg.InitialDelay)
	return min(d, cfg.MaxDelay)
}
