package session

import (
	"context"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterTransientTimeout(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, newError(ErrCodeTimeout, "")
		}
		return []byte("ok"), nil
	}

	reply, err := withRetry(3, time.Millisecond, op)(context.Background())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if string(reply) != "ok" {
		t.Fatalf("reply = %q, want %q", reply, "ok")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryGivesUpAfterExhaustingAttempts(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, newError(ErrCodeTimeout, "")
	}

	_, err := withRetry(2, time.Millisecond, op)(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 { // one initial attempt plus two retries
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryDoesNotRetryNonRetryableError(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, newError(ErrCodeNotRegistered, "wrong pin")
	}

	_, err := withRetry(5, time.Millisecond, op)(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry for non-retryable error)", calls)
	}
}

func TestWithRetryZeroDisablesRetrying(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, newError(ErrCodeTimeout, "")
	}

	_, err := withRetry(0, time.Millisecond, op)(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
