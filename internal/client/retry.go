package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of remote calls. Retryable decides from a
// response status code whether another attempt may help; transport errors
// are always retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(statusCode int) bool
}

// DefaultRetryPolicy retries transient failures five times with exponential
// backoff between one and five seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		Retryable:       DefaultRetryable,
	}
}

// DefaultRetryable treats rate limiting and server-side failures as
// transient. Other 4xx responses surface immediately.
func DefaultRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// do runs fn under the policy. fn reports non-2xx responses as *APIError;
// a Retry-After hint on one overrides the backoff schedule for that wait.
func (p RetryPolicy) do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var apiErr *APIError
		isAPI := errors.As(err, &apiErr)
		if isAPI && !p.Retryable(apiErr.StatusCode) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt, err)
		}

		wait := bo.NextBackOff()
		if isAPI && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		logger.Warn("retrying "+op, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
