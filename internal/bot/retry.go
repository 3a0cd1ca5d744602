package bot

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often a pipeline stage is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable reports whether an attempt error is worth another try. Nil
	// retries everything.
	Retryable func(error) bool
}

func DefaultFetchPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second, Retryable: IsTransient}
}

func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// IsTransient is true for network and HTTP-layer failures. Missing or
// malformed content will not fix itself.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrMalformedContent),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made.
func (p RetryPolicy) do(ctx context.Context, sleep sleepFunc, fn func(attempt int) error) (int, error) {
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = 1
	}

	var err error
	for attempt := 1; attempt <= limit; attempt++ {
		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt == limit || (p.Retryable != nil && !p.Retryable(err)) {
			return attempt, err
		}
		if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
			return attempt, err
		}
	}
	return limit, err
}
