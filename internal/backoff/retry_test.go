package backoff

import (
	"context"
	"errors"
	"testing"
)

func fastPolicy() Policy {
	return Policy{InitialMs: 1, MaxMs: 2, Factor: 1, Jitter: 0}
}

func TestRetrySucceedsOnFirstAttempt(t *testing.T) {
	result, err := Retry(context.Background(), fastPolicy(), 3, func(attempt int) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Value != "ok" || result.Attempts != 1 {
		t.Fatalf("expected value ok on attempt 1, got %+v", result)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastPolicy(), 3, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 || result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got calls=%d result=%+v", calls, result)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	_, err := Retry(context.Background(), fastPolicy(), 2, func(attempt int) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Fatalf("expected ErrMaxAttemptsExhausted, got %v", err)
	}
}

func TestRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, fastPolicy(), 3, func(attempt int) (string, error) {
		return "", errors.New("should not be called after cancel")
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
