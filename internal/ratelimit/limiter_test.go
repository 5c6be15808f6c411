package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitConsumesTokenImmediatelyWhenAvailable(t *testing.T) {
	l := NewLimiter(2, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}

	stats := l.Stats()
	if stats.AvailableTokens != 1 {
		t.Fatalf("AvailableTokens = %d, want 1", stats.AvailableTokens)
	}
	if stats.TotalRequests != 1 {
		t.Fatalf("TotalRequests = %d, want 1", stats.TotalRequests)
	}
}

func TestWaitBlocksUntilContextCanceledWhenExhausted(t *testing.T) {
	l := NewLimiter(1, time.Hour)

	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait() = %v, want nil", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(cancelCtx); err == nil {
		t.Fatal("Wait() with exhausted bucket should return an error once context is done")
	}
}

func TestReleaseReturnsTokenToBucket(t *testing.T) {
	l := NewLimiter(1, time.Hour)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if stats := l.Stats(); stats.AvailableTokens != 0 {
		t.Fatalf("AvailableTokens = %d, want 0", stats.AvailableTokens)
	}

	l.Release()
	if stats := l.Stats(); stats.AvailableTokens != 1 {
		t.Fatalf("AvailableTokens after Release() = %d, want 1", stats.AvailableTokens)
	}
}

func TestReleaseNeverExceedsMaxTokens(t *testing.T) {
	l := NewLimiter(2, time.Hour)
	l.Release()
	l.Release()
	l.Release()

	if stats := l.Stats(); stats.AvailableTokens != 2 {
		t.Fatalf("AvailableTokens = %d, want capped at 2", stats.AvailableTokens)
	}
}

func TestTokensRefillOverTime(t *testing.T) {
	l := NewLimiter(1, 10*time.Millisecond)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if stats := l.Stats(); stats.AvailableTokens != 0 {
		t.Fatalf("AvailableTokens = %d, want 0", stats.AvailableTokens)
	}

	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() after refill window = %v, want nil", err)
	}
}

func TestNewLimiterAppliesDefaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.maxTokens != 4 {
		t.Fatalf("maxTokens = %d, want default 4", l.maxTokens)
	}
	if l.refillRate != 30*time.Second {
		t.Fatalf("refillRate = %v, want default 30s", l.refillRate)
	}
}
