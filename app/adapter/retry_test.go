package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     retries,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetrySuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{Err: errors.New("temporary error")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxRetriesExceeded(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(2), func() error {
		attempts++
		return &RetryableError{Err: errors.New("persistent error")}
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := errors.New("bad request")
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Expected permanent error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := testPolicy(3)
	policy.InitialBackoff = time.Hour
	policy.MaxBackoff = time.Hour

	err := Retry(ctx, policy, func() error {
		return &RetryableError{Err: errors.New("throttled")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	if got := parseRetryAfter("7", now); got != 7*time.Second {
		t.Errorf("Expected 7s, got: %v", got)
	}
	if got := parseRetryAfter("Fri, 10 May 2024 12:00:30 GMT", now); got != 30*time.Second {
		t.Errorf("Expected 30s, got: %v", got)
	}
	if got := parseRetryAfter("soon", now); got != 0 {
		t.Errorf("Expected 0 for unparseable header, got: %v", got)
	}
}
