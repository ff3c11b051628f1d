package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func TestMergeSpans_MergesAdjacentAndOverlapping(t *testing.T) {
	got := MergeSpans([]core.Span{
		{Start: 0, End: 10},
		{Start: 10, End: 20},
		{Start: 25, End: 30},
		{Start: 28, End: 35},
	})
	require.Equal(t, []core.Span{{Start: 0, End: 20}, {Start: 25, End: 35}}, got)
}

func TestMissingSpans_Complement(t *testing.T) {
	got := MissingSpans([]core.Span{{Start: 10, End: 20}}, 0, 30)
	require.Equal(t, []core.Span{{Start: 0, End: 10}, {Start: 20, End: 30}}, got)
}

func TestMissingSpans_FullyCovered_ReturnsNil(t *testing.T) {
	got := MissingSpans([]core.Span{{Start: 0, End: 30}}, 0, 30)
	require.Empty(t, got)
}

func TestMemory_StoreAndStreamCandles_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	candles := []core.Candle{
		{Time: 0, Open: decimal.NewFromInt(1), Closed: true},
		{Time: 1, Open: decimal.NewFromInt(2), Closed: true},
	}
	require.NoError(t, m.StoreCandlesAndSpan(ctx, "binance", "eth-btc:1", candles, core.Span{Start: 0, End: 2}))

	got, err := m.StreamCandles(ctx, "binance", "eth-btc:1", 0, 2)
	require.NoError(t, err)
	require.Equal(t, candles, got)

	spans, err := m.StreamSpans(ctx, "binance", "eth-btc:1", 0, 2)
	require.NoError(t, err)
	require.Equal(t, []core.Span{{Start: 0, End: 2}}, spans)
}

func TestMemory_StoreCandlesAndSpan_RejectsOutOfRangeTime(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.StoreCandlesAndSpan(ctx, "binance", "eth-btc:1",
		[]core.Candle{{Time: 5}}, core.Span{Start: 0, End: 2})
	require.ErrorIs(t, err, core.ErrConsistency)
}

func TestMemory_StoreCandlesAndSpan_RejectsOverlappingSpan(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.StoreCandlesAndSpan(ctx, "binance", "eth-btc:1", nil, core.Span{Start: 0, End: 10}))
	err := m.StoreCandlesAndSpan(ctx, "binance", "eth-btc:1", nil, core.Span{Start: 5, End: 15})
	require.ErrorIs(t, err, core.ErrConsistency)
}

func TestMemory_ObjectStore_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type fees struct{ Maker, Taker string }
	require.NoError(t, m.SetObject(ctx, "binance", "map_Fees", fees{Maker: "0.001", Taker: "0.001"}))

	var got fees
	require.NoError(t, m.GetObject(ctx, "binance", "map_Fees", &got))
	require.Equal(t, "0.001", got.Maker)
}

func TestMemory_GetObject_NotFound(t *testing.T) {
	m := NewMemory()
	var dst any
	err := m.GetObject(context.Background(), "binance", "missing", &dst)
	require.ErrorIs(t, err, ErrNotFound)
}
