package webclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const maxRetryDelay = 30 * time.Second

type AttemptFunc func() (status int, body []byte, err error)

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry retries the attempt function on transient errors (429/5xx) or non-nil errors.
// Only idempotent calls should be wrapped. The delay doubles after every failure up to 30s.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	delay := initialDelay
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		status, body, err := fn()
		if err == nil && !Retryable(status) {
			return status, body, nil
		}
		// 4xx other than 429 will not improve on a second try.
		if err != nil && (status >= 400 && !Retryable(status) || errors.Is(err, ErrPrivateAddress)) {
			return status, body, err
		}
		if i == attempts-1 {
			return status, body, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < maxRetryDelay {
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}
	return 0, nil, context.DeadlineExceeded
}
