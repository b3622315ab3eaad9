// ABOUTME: Retry utilities for network calls with exponential backoff
// ABOUTME: Shared by the embedding provider and the generator for consistent retry behavior
package util

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// CalculateBackoff returns exponential backoff with jitter
// Base delay is doubled each attempt, with random jitter up to 25%
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift (max 30 for safety)
	if attempt > 30 {
		attempt = 30
	}
	// Exponential: 2^attempt * base
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	// Cap at 30 seconds
	if backoff > 30*time.Second || backoff <= 0 {
		backoff = 30 * time.Second
	}
	if backoff < 4 {
		return backoff
	}
	// Add jitter: -25% to +25% using auto-seeded math/rand/v2
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Policy bounds a retry loop
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// Retry calls fn until it succeeds, fails with a non-transient error, or the retry
// budget is spent. It returns how many attempts were made. Each attempt gets its own
// timeout; an attempt timeout is transient, a cancelled or expired parent ctx is not.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := Sleep(ctx, CalculateBackoff(p.BaseDelay, attempt)); err != nil {
				return attempt, fmt.Errorf("attempt %d: %w", attempt+1, err)
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err := fn(attemptCtx, attempt)
		cancel()

		if err == nil {
			return attempt + 1, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt + 1, fmt.Errorf("attempt %d: %w", attempt+1, ctxErr)
		}

		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !IsTransient(err) {
			return attempt + 1, lastErr
		}
	}

	return p.MaxRetries + 1, lastErr
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
