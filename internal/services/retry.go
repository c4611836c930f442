package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
)

const (
	readRetryInitialInterval = 50 * time.Millisecond
	readRetryMaxInterval     = 500 * time.Millisecond
	readRetryMaxAttempts     = 2
)

// retryRead runs a read-only store call, retrying transient failures with
// exponential backoff. Taxonomy errors and context cancellation are final.
// Mutations must never go through here.
func retryRead[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = readRetryInitialInterval
	policy.MaxInterval = readRetryMaxInterval

	result, err := backoff.RetryWithData(func() (T, error) {
		value, err := fn()
		if err == nil {
			return value, nil
		}
		if apperr.IsKnown(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, readRetryMaxAttempts), ctx))

	return result, apperr.Unavailable(op, err)
}
