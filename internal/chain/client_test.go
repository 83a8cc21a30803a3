package chain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryStopsAfterBudget(t *testing.T) {
	c := &Client{cfg: Config{MaxRetries: 2, RetryBackoff: time.Millisecond}}
	wantErr := errors.New("node down")
	calls := 0

	err := c.withRetry(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryRecoversOnLaterAttempt(t *testing.T) {
	c := &Client{cfg: Config{MaxRetries: 3, RetryBackoff: time.Millisecond}}
	calls := 0

	err := c.withRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	c := &Client{cfg: Config{MaxRetries: 5, RetryBackoff: time.Hour}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.withRetry(ctx, func(context.Context) error {
		return errors.New("node down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
