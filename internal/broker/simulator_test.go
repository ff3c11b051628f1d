package broker

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func TestSimulator_OpenCloseLong_MatchesScenario1(t *testing.T) {
	s := NewSimulator(core.Fees{}, core.DefaultFilters())

	open := s.OpenLong("eth-usdt", 0, decimal.NewFromInt(10), decimal.NewFromInt(10))
	require.True(t, decimal.NewFromInt(1).Equal(open.BaseGain()))

	closed := s.CloseLong(open, 2, decimal.NewFromInt(18), core.CloseReasonStopLoss)
	require.True(t, decimal.NewFromInt(8).Equal(closed.Profit()), "profit should be 8, got %s", closed.Profit())
	require.Equal(t, core.CloseReasonStopLoss, closed.Reason)
}

func TestSimulator_OpenCloseShort_MatchesScenario2(t *testing.T) {
	s := NewSimulator(core.Fees{}, core.DefaultFilters())

	open := s.OpenShort("eth-usdt", 0, decimal.NewFromInt(10), decimal.NewFromInt(10), 2)
	require.True(t, decimal.NewFromInt(1).Equal(open.Borrowed))

	closed := s.CloseShort(open, 2, decimal.NewFromInt(6), decimal.Zero, core.CloseReasonStopLoss)
	require.True(t, decimal.NewFromInt(4).Equal(closed.Profit()), "profit should be 4, got %s", closed.Profit())
	require.Equal(t, core.CloseReasonStopLoss, closed.Reason)
}

func TestSimulator_CloseShort_AccruesInterest(t *testing.T) {
	s := NewSimulator(core.Fees{}, core.DefaultFilters())
	open := s.OpenShort("eth-usdt", 0, decimal.NewFromInt(10), decimal.NewFromInt(10), 2)

	closed := s.CloseShort(open, DayMS*3, decimal.NewFromInt(10), decimal.NewFromFloat(0.01), core.CloseReasonStrategy)
	require.True(t, closed.Interest.GreaterThan(decimal.Zero))
}

func TestSimulator_OpenLong_ChargesBaseFee(t *testing.T) {
	fees := core.Fees{Maker: decimal.NewFromFloat(0.001), Taker: decimal.NewFromFloat(0.001)}
	s := NewSimulator(fees, core.DefaultFilters())
	open := s.OpenLong("eth-usdt", 0, decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.True(t, open.Fills[0].Fee.GreaterThan(decimal.Zero))
	require.Equal(t, "eth", open.Fills[0].FeeAsset)
}

func TestSimulator_OpenShort_ChargesQuoteFee(t *testing.T) {
	fees := core.Fees{Maker: decimal.NewFromFloat(0.001), Taker: decimal.NewFromFloat(0.001)}
	s := NewSimulator(fees, core.DefaultFilters())
	open := s.OpenShort("eth-usdt", 0, decimal.NewFromInt(10), decimal.NewFromInt(100), 2)
	require.True(t, open.Fills[0].Fee.GreaterThan(decimal.Zero))
	require.Equal(t, "usdt", open.Fills[0].FeeAsset, "OpenShort's fee is computed in quote, so FeeAsset must match")
}
