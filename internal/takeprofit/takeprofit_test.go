package takeprofit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func closeAt(price int64) core.Candle {
	return core.Candle{Close: decimal.NewFromInt(price)}
}

func TestTakeProfit_ZeroFractionNeverHits(t *testing.T) {
	tp := New(decimal.Zero)
	tp.Clear(closeAt(10))
	tp.Update(closeAt(1000))
	require.False(t, tp.UpsideHit())
	require.False(t, tp.DownsideHit())
}

func TestTakeProfit_UpsideOnLongScenario(t *testing.T) {
	// Mirrors: closes [10, 12, 20, 10], fraction 0.5; expect the take-profit
	// to trigger exactly at the t=2 candle (close 20).
	tp := New(decimal.NewFromFloat(0.5))
	tp.Clear(closeAt(10))

	tp.Update(closeAt(12))
	require.False(t, tp.UpsideHit(), "not yet 50%% above entry")

	tp.Update(closeAt(20))
	require.True(t, tp.UpsideHit())
}

func TestTakeProfit_DownsideOnShort(t *testing.T) {
	tp := New(decimal.NewFromFloat(0.2))
	tp.Clear(closeAt(10))

	tp.Update(closeAt(9))
	require.False(t, tp.DownsideHit())

	tp.Update(closeAt(8))
	require.True(t, tp.DownsideHit())
}

func TestTakeProfit_ReferenceNeverTrails(t *testing.T) {
	tp := New(decimal.NewFromFloat(0.5))
	tp.Clear(closeAt(10))
	tp.Update(closeAt(100)) // far past threshold, reference stays at entry
	require.True(t, tp.UpsideHit())
	tp.Update(closeAt(14)) // dropped back below the fixed 15 threshold
	require.False(t, tp.UpsideHit(), "fell back under the fixed 15 threshold")
}

func TestTakeProfit_InactiveBeforeFirstClear(t *testing.T) {
	tp := New(decimal.NewFromFloat(0.5))
	require.False(t, tp.UpsideHit())
	require.False(t, tp.DownsideHit())
}
