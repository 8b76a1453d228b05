package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dexsim/internal/amm"
)

func TestWithRetryEventualSuccess(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts: got %d want 3", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("want wrapped error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts: got %d want 3", attempts)
	}
}

func TestWithRetrySkipsDecodeFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("bad payload: %w", amm.ErrDecodeFailure)
	})
	if !errors.Is(err, amm.ErrDecodeFailure) {
		t.Fatalf("want ErrDecodeFailure, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("decode failure must not be retried: %d attempts", attempts)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := withRetry(ctx, 5, 50*time.Millisecond, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts: got %d want 1", attempts)
	}
}
