package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTradingSummary_ProfitAcrossPositions(t *testing.T) {
	s := NewTradingSummary(0, d("100"), "btc")

	s.AppendLongPosition(OpenLong{
		Fills: []Fill{{Quote: d("10")}},
	}.Close(CloseReasonStrategy, 1, []Fill{{Quote: d("18")}}))

	s.AppendShortPosition(OpenShort{
		Collateral: d("10"),
		Borrowed:   d("2"),
		Fills:      []Fill{{Quote: d("10")}},
	}.Close(CloseReasonStrategy, decimal.Zero, 2, []Fill{{Quote: d("6")}}))

	require.Equal(t, 2, s.NumPositions())
	require.Equal(t, 1, s.NumLongPositions())
	require.Equal(t, 1, s.NumShortPositions())
	// long profit = 18-10 = 8; short profit = (10+10-6)-10 = 4
	require.True(t, s.Profit().Equal(d("12")))
}

func TestTradingSummary_Finish_MonotoneNonDecreasing(t *testing.T) {
	s := NewTradingSummary(0, d("100"), "btc")
	s.Finish(10)
	end, ok := s.End()
	require.True(t, ok)
	require.Equal(t, Timestamp(10), end)

	s.Finish(5) // earlier end must not move End backwards
	end, _ = s.End()
	require.Equal(t, Timestamp(10), end)

	s.Finish(20)
	end, _ = s.End()
	require.Equal(t, Timestamp(20), end)
}

func TestTradingSummary_MaxDrawdown(t *testing.T) {
	s := NewTradingSummary(0, d("100"), "btc")
	s.AppendLongPosition(OpenLong{Fills: []Fill{{Quote: d("100")}}}.Close(CloseReasonStrategy, 1, []Fill{{Quote: d("50")}}))

	// equity: 100 -> 50; drawdown = 1 - 50/100 = 0.5
	require.True(t, s.MaxDrawdown().Equal(d("0.5")))
}

func TestTradingSummary_EmptyHasZeroStats(t *testing.T) {
	s := NewTradingSummary(0, d("100"), "btc")
	require.True(t, s.Profit().IsZero())
	require.True(t, s.MeanPositionProfit().IsZero())
	require.Equal(t, Interval(0), s.MeanPositionDuration())
	require.True(t, s.MaxDrawdown().IsZero())
}
