package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
	"jax-research-platform/libs/ratelimit"
)

func TestCall_Success(t *testing.T) {
	c := NewBaseClient("test-venue", ratelimit.Config{Rate: 1000, Period: time.Second, Burst: 1000})
	got, err := Call(context.Background(), c, "list_symbols", "list_symbols", 1, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestCall_WrapsFailureAsRetriable(t *testing.T) {
	c := NewBaseClient("test-venue", ratelimit.Config{Rate: 1000, Period: time.Second, Burst: 1000})
	boom := errors.New("boom")
	_, err := Call(context.Background(), c, "place_order", "place_order", 1, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.Error(t, err)
	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	require.True(t, exErr.Retriable)
	require.ErrorIs(t, err, boom)
}

func TestCall_RateLimiterCancellation(t *testing.T) {
	c := NewBaseClient("test-venue", ratelimit.Config{Rate: 1, Period: time.Hour, Burst: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, c, "op", "op", 1, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.Error(t, err)
	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	require.True(t, exErr.Retriable)
}

func TestRetryWithResetWindow_RetriesRetriableUpToMax(t *testing.T) {
	attempts := 0
	err := RetryWithResetWindow(context.Background(), 3, time.Hour, func(ctx context.Context) error {
		attempts++
		return NewRetriable("venue", "op", errors.New("transient"))
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryWithResetWindow_StopsImmediatelyOnPermanent(t *testing.T) {
	attempts := 0
	err := RetryWithResetWindow(context.Background(), 5, time.Hour, func(ctx context.Context) error {
		attempts++
		return NewPermanent("venue", "op", errors.New("bad request"))
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryWithResetWindow_SucceedsEventually(t *testing.T) {
	attempts := 0
	err := RetryWithResetWindow(context.Background(), 5, time.Hour, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewRetriable("venue", "op", errors.New("transient"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestErrors_OrderErrorWrapsSentinel(t *testing.T) {
	err := &OrderError{Venue: "binance", Symbol: "eth-btc", Reason: "insufficient balance"}
	require.ErrorIs(t, err, core.ErrOrder)
}
