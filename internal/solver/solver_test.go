package solver

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/internal/trader"
)

type scriptedStrategy struct {
	script  []core.Advice
	updates int
	current core.Advice
}

func (s *scriptedStrategy) Update(core.Candle) {
	if s.updates < len(s.script) {
		s.current = s.script[s.updates]
	}
	s.updates++
}
func (s *scriptedStrategy) Advice() core.Advice { return s.current }
func (s *scriptedStrategy) Maturity() int       { return 1 }
func (s *scriptedStrategy) Mature() bool        { return s.updates >= 1 }

func scriptedFactory(script []core.Advice) strategy.Factory {
	return func(map[string]any) (strategy.Strategy, error) {
		return &scriptedStrategy{script: script}, nil
	}
}

func candle(t core.Timestamp, price int64) core.Candle {
	d := decimal.NewFromInt(price)
	return core.Candle{Time: t, Open: d, High: d, Low: d, Close: d, Volume: decimal.NewFromInt(1), Closed: true}
}

func TestNative_Solve_MatchesBacktestProfit(t *testing.T) {
	candles := []core.Candle{candle(0, 10), candle(1, 12), candle(2, 15), candle(3, 15)}
	config := Config{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 4, Quote: decimal.NewFromInt(10),
		Candles: candles,
		Filters: core.DefaultFilters(),
		Strategy: trader.StrategyConfig{
			Name: "scripted",
			Factory: scriptedFactory([]core.Advice{
				core.AdviceNone, core.AdviceLong, core.AdviceNone, core.AdviceLiquidate,
			}),
		},
		Long: true,
	}

	fitness, err := NewNative().Solve(context.Background(), config)
	require.NoError(t, err)
	require.Equal(t, 1, fitness.NumPositionsInProfit)
	require.Equal(t, 0, fitness.NumPositionsInLoss)
	require.Greater(t, fitness.Profit, 0.0)
}

func TestNative_Solve_NoFiatSeriesLeavesStatisticsZero(t *testing.T) {
	candles := []core.Candle{candle(0, 10), candle(1, 10)}
	config := Config{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 2, Quote: decimal.NewFromInt(10),
		Candles:  candles,
		Filters:  core.DefaultFilters(),
		Strategy: trader.StrategyConfig{Name: "scripted", Factory: scriptedFactory(nil)},
		Long:     true,
	}

	fitness, err := NewNative().Solve(context.Background(), config)
	require.NoError(t, err)
	require.Zero(t, fitness.Sharpe)
	require.Zero(t, fitness.Sortino)
	require.Zero(t, fitness.Alpha)
}

func TestSharpeSortino_ZeroVolatilityIsZero(t *testing.T) {
	sharpe, sortino := sharpeSortino(nil)
	require.Zero(t, sharpe)
	require.Zero(t, sortino)
}

func TestAlpha_TracksBenchmarkWhenIdentical(t *testing.T) {
	g := []float64{0.01, -0.02, 0.03, 0.0, 0.01}
	a := alpha(g, g, annualizedReturn(g))
	require.InDelta(t, 0, a, 1e-9)
}
