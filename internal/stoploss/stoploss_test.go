package stoploss

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func closeAt(price int64) core.Candle {
	return core.Candle{Close: decimal.NewFromInt(price)}
}

func TestStopLoss_ZeroFractionNeverHits(t *testing.T) {
	s := New(decimal.Zero, true)
	s.Clear(closeAt(10))
	s.Update(closeAt(1))
	require.False(t, s.UpsideHit())
	require.False(t, s.DownsideHit())
}

func TestStopLoss_UpsideTrailing_LongPositionScenario(t *testing.T) {
	// Mirrors: closes [10, 20, 18, 10], fraction 0.1, trailing; expect the
	// stop to trigger exactly at the t=2 candle (close 18).
	s := New(decimal.NewFromFloat(0.1), true)
	s.Clear(closeAt(10))
	require.False(t, s.UpsideHit())

	s.Update(closeAt(20))
	require.False(t, s.UpsideHit(), "price still rising, no stop yet")

	s.Update(closeAt(18))
	require.True(t, s.UpsideHit(), "10%% pullback from the 20 peak hits at 18")
}

func TestStopLoss_DownsideTrailing_ShortPositionScenario(t *testing.T) {
	// Mirrors: closes [10, 5, 6, 10], fraction 0.1, trailing; expect the
	// stop to trigger exactly at the t=2 candle (close 6).
	s := New(decimal.NewFromFloat(0.1), true)
	s.Clear(closeAt(10))

	s.Update(closeAt(5))
	require.False(t, s.DownsideHit(), "price still falling, no stop yet")

	s.Update(closeAt(6))
	require.True(t, s.DownsideHit(), "10%% bounce from the 5 valley hits at 5.5")
}

func TestStopLoss_NonTrailing_ReferenceStaysAtEntry(t *testing.T) {
	s := New(decimal.NewFromFloat(0.1), false)
	s.Clear(closeAt(10))
	s.Update(closeAt(20)) // would move the reference if trailing
	s.Update(closeAt(9))  // only a 10% drop from the original entry, not the peak
	require.True(t, s.UpsideHit())
}

func TestStopLoss_InactiveBeforeFirstClear(t *testing.T) {
	s := New(decimal.NewFromFloat(0.1), true)
	require.False(t, s.UpsideHit())
	require.False(t, s.DownsideHit())
}
