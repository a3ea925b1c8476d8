package poller

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_FirstAttemptSuccess(t *testing.T) {
	calls := 0
	result := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return nil
	})
	if result.Outcome != PersistSuccess {
		t.Fatalf("expected %s, got %s", PersistSuccess, result.Outcome)
	}
	if calls != 1 || result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got calls=%d attempts=%d", calls, result.Attempts)
	}
}

func TestRetryWithBackoff_RecoversAfterFailure(t *testing.T) {
	calls := 0
	result := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if result.Outcome != PersistRetriedSuccess {
		t.Fatalf("expected %s, got %s", PersistRetriedSuccess, result.Outcome)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.Err != nil {
		t.Fatalf("expected nil error on recovery, got %v", result.Err)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	boom := errors.New("deadlock detected")
	calls := 0
	result := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	if result.Outcome != PersistExhausted {
		t.Fatalf("expected %s, got %s", PersistExhausted, result.Outcome)
	}
	if calls != 3 || result.Attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got calls=%d attempts=%d", calls, result.Attempts)
	}
	if !errors.Is(result.Err, boom) {
		t.Fatalf("expected final error %v, got %v", boom, result.Err)
	}
}

func TestRetryWithBackoff_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := RetryWithBackoff(ctx, 5, time.Hour, func() error {
		calls++
		return errors.New("still failing")
	})
	if result.Outcome != PersistExhausted {
		t.Fatalf("expected %s, got %s", PersistExhausted, result.Outcome)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", calls)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", result.Err)
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cutoff := RetentionCutoff(now, 24*time.Hour)
	want := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, cutoff)
	}
}
