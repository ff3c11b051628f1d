package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquire_WithinBurst_DoesNotBlock(t *testing.T) {
	l := New(Config{Rate: 10, Period: time.Second, Burst: 5})

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), "ticker", 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected burst acquires to be immediate, took %v", elapsed)
	}
}

func TestAcquire_ExhaustedBucket_Suspends(t *testing.T) {
	l := New(Config{Rate: 100, Period: time.Second, Burst: 1})

	if err := l.Acquire(context.Background(), "order", 1); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(context.Background(), "order", 1); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("expected second acquire to wait for refill, took %v", elapsed)
	}
}

func TestAcquire_ContextCancelled_ReturnsError(t *testing.T) {
	l := New(Config{Rate: 1, Period: time.Hour, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx, "order", 1); err != nil {
		t.Fatalf("first acquire should succeed from burst: %v", err)
	}
	if err := l.Acquire(ctx, "order", 1); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestWithEndpoint_OverridesDefault(t *testing.T) {
	l := New(Config{Rate: 1, Period: time.Hour, Burst: 1})
	l.WithEndpoint("fast", Config{Rate: 1000, Period: time.Second, Burst: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx, "fast", 1); err != nil {
			t.Fatalf("acquire %d on fast endpoint: %v", i, err)
		}
	}
}

func TestAcquire_DistinctKeys_IndependentBuckets(t *testing.T) {
	l := New(Config{Rate: 1, Period: time.Hour, Burst: 1})

	if err := l.Acquire(context.Background(), "a", 1); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if err := l.Acquire(context.Background(), "b", 1); err != nil {
		t.Fatalf("acquire b should be independent of a: %v", err)
	}
}
