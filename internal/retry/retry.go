// package retry implements bounded retry with full-jitter exponential backoff
// for remote calls. Policies are immutable values attached per call-site; the
// same executor wraps listing calls, uploads, downloads, and individual
// resumable-upload chunk continuations.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy bounds a retryable operation. The zero value is not useful; use
// [DefaultPolicy] or construct explicitly.
type Policy struct {
	MaxRetries int           // retries after the first attempt; total attempts = MaxRetries + 1
	BaseDelay  time.Duration // backoff cap doubles from this per attempt
	MaxDelay   time.Duration // upper bound on the backoff cap
}

// DefaultPolicy mirrors the service defaults: up to 5 retries, 1s base, 30s cap.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// VideoDownloadPolicy allows more and longer retries for large media fetches.
func VideoDownloadPolicy() Policy {
	return Policy{MaxRetries: 6, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

// VideoUploadPolicy allows the largest budget; resumable chunk retries on
// slow links can legitimately need it.
func VideoUploadPolicy() Policy {
	return Policy{MaxRetries: 8, BaseDelay: time.Second, MaxDelay: 90 * time.Second}
}

// sleep is replaced in tests to count backoffs without waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns the full-jitter delay for the given zero-based attempt:
// uniform(0, min(MaxDelay, BaseDelay * 2^attempt)).
func backoff(attempt int, p Policy) time.Duration {
	cap := p.BaseDelay << uint(attempt)
	if cap > p.MaxDelay || cap <= 0 {
		cap = p.MaxDelay
	}
	if cap <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(cap)))
}

// Do runs op up to p.MaxRetries+1 times. Errors not matching retryable
// propagate immediately. Retryable errors trigger a jittered backoff sleep
// while attempts remain; after the final attempt the last error is returned.
func Do[T any](ctx context.Context, op func() (T, error), retryable func(error) bool, p Policy) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt >= p.MaxRetries {
			break
		}
		if err := sleep(ctx, backoff(attempt, p)); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
