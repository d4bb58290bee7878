package providers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryConfig controls backoff for transient provider failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryConfig retries three times with 1s quadratic backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second}
}

// HTTPStatusError is a non-2xx provider response. 429 and 5xx are
// retryable; everything else fails immediately.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status indicates a transient condition.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// retryDo invokes fn with exponential backoff and jitter until it
// succeeds, returns a non-retryable error, or retries are exhausted.
func retryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			base := time.Duration(attempt*attempt) * cfg.BaseDelay
			jitter := time.Duration(rand.Int64N(int64(base/2 + 1)))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(base + jitter):
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("after %d retries: %w", cfg.MaxRetries, lastErr)
}
