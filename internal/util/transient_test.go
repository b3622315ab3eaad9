// ABOUTME: Tests for transient error classification and the retry loop
// ABOUTME: Verifies 4xx is never retried, 5xx and timeouts are, and cancellation stops the loop
package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/harper/ragcore/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"wrapped transient sentinel", fmt.Errorf("empty response: %w", models.ErrTransientIO), true},
		{"api 503", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}, true},
		{"api 500 wrapped", fmt.Errorf("call: %w", &openai.APIError{HTTPStatusCode: 500}), true},
		{"api 401", &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, false},
		{"api 429", &openai.APIError{HTTPStatusCode: 429}, false},
		{"request 502", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, true},
		{"request 404", &openai.RequestError{HTTPStatusCode: 404, Err: errors.New("nope")}, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return models.ErrTransientIO
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3 and 3", attempts, calls)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := &openai.APIError{HTTPStatusCode: 400, Message: "bad request"}
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		return permanent
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("error should wrap the API error, got %v", err)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		return models.ErrTransientIO
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !errors.Is(err, models.ErrTransientIO) {
		t.Errorf("last error should be returned, got %v", err)
	}
}

func TestRetry_AttemptTimeoutIsRetried(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 1, BaseDelay: time.Millisecond, AttemptTimeout: 5 * time.Millisecond}, func(ctx context.Context, attempt int) error {
		if attempt == 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_CancelledParentStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts, err := Retry(ctx, Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		cancel()
		return models.ErrTransientIO
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep should return promptly when ctx is cancelled")
	}
}
