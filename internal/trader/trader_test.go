package trader

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/storage"
	"jax-research-platform/internal/strategy"
)

// scriptedStrategy emits a fixed advice per Update call, in order; once
// exhausted it repeats the last advice. It matures after maturity updates.
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

type fakeCandleStream struct {
	items []core.Candle
	i     int
}

func (s *fakeCandleStream) Next(context.Context) (core.Candle, error) {
	if s.i >= len(s.items) {
		return core.Candle{}, io.EOF
	}
	c := s.items[s.i]
	s.i++
	return c, nil
}
func (s *fakeCandleStream) Close() error { return nil }

type fakeExchange struct {
	exchange.Exchange
	name    string
	candles []core.Candle
}

func (f *fakeExchange) Name() string { return f.name }
func (f *fakeExchange) Capabilities() exchange.Capabilities {
	return exchange.Capabilities{CanStreamHistoricalCandles: true}
}
func (f *fakeExchange) StreamHistoricalCandles(
	ctx context.Context, symbol string, interval core.Interval, start, end core.Timestamp,
) (exchange.CandleStream, error) {
	var in []core.Candle
	for _, c := range f.candles {
		if c.Time >= start && c.Time < end {
			in = append(in, c)
		}
	}
	return &fakeCandleStream{items: in}, nil
}

type stubFetcher struct{ info informant.ExchangeInfo }

func (f *stubFetcher) FetchExchangeInfo(context.Context, exchange.Exchange) (informant.ExchangeInfo, error) {
	return f.info, nil
}

func candle(t core.Timestamp, price int64) core.Candle {
	d := decimal.NewFromInt(price)
	return core.Candle{Time: t, Open: d, High: d, Low: d, Close: d, Volume: decimal.NewFromInt(1), Closed: true}
}

func candlePrice(t core.Timestamp, o, h, l, c int64) core.Candle {
	return core.Candle{
		Time: t, Open: decimal.NewFromInt(o), High: decimal.NewFromInt(h),
		Low: decimal.NewFromInt(l), Close: decimal.NewFromInt(c),
		Volume: decimal.NewFromInt(1), Closed: true,
	}
}

func newTestTrader(t *testing.T, candles []core.Candle) (*Basic, context.Context) {
	t.Helper()
	store := storage.NewMemory()
	ex := &fakeExchange{name: "binance", candles: candles}
	ch := chandler.New(store, []exchange.Exchange{ex})

	fetcher := &stubFetcher{info: informant.ExchangeInfo{
		Fees:             map[string]core.Fees{"__all__": {}},
		Filters:          map[string]core.Filters{"eth-usdt": core.DefaultFilters()},
		MarginMultiplier: 2,
		BorrowInfo:       map[string]informant.BorrowInfo{"eth": {DailyInterestRate: decimal.NewFromFloat(0.0001)}},
	}}
	inf := informant.New([]exchange.Exchange{ex}, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go inf.Run(ctx)
	require.NoError(t, inf.Ready(ctx, "binance"))

	return New(ch, inf), ctx
}

func TestBasic_BacktestLongClosedByStopLoss(t *testing.T) {
	// A LONG advice at t=0 opens a position priced off c0's close; c2's
	// collapse to 4 breaches the 50% stop-loss measured off the high (10).
	candles := []core.Candle{
		candle(0, 10),
		candle(1, 10),
		candlePrice(2, 18, 18, 4, 4),
		candle(3, 4),
	}
	tr, ctx := newTestTrader(t, candles)

	config := BasicConfig{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 4, Quote: decimal.NewFromInt(10),
		Strategy:         StrategyConfig{Name: "scripted", Factory: scriptedFactory([]core.Advice{core.AdviceLong})},
		StopLossFraction: decimal.NewFromFloat(0.5),
		Long:             true,
		Mode:             core.TradingModeBacktest,
	}

	state, err := tr.Initialize(ctx, config)
	require.NoError(t, err)

	require.NoError(t, tr.Run(ctx, state))

	require.Equal(t, 1, state.Summary.NumLongPositions())
	closed := state.Summary.GetLongPositions()[0]
	require.Equal(t, core.CloseReasonStopLoss, closed.Reason)
	require.False(t, state.OpenPosition.IsOpen())
}

func TestBasic_BacktestOpensAndHoldsThroughLiquidate(t *testing.T) {
	candles := []core.Candle{
		candle(0, 10),
		candle(1, 10),
		candle(2, 12),
		candle(3, 12),
	}
	tr, ctx := newTestTrader(t, candles)

	config := BasicConfig{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 4, Quote: decimal.NewFromInt(10),
		Strategy: StrategyConfig{
			Name: "scripted",
			Factory: scriptedFactory([]core.Advice{
				core.AdviceNone, core.AdviceLong, core.AdviceNone, core.AdviceLiquidate,
			}),
		},
		Long: true,
		Mode: core.TradingModeBacktest,
	}

	state, err := tr.Initialize(ctx, config)
	require.NoError(t, err)
	require.NoError(t, tr.Run(ctx, state))

	require.Equal(t, 1, state.Summary.NumLongPositions())
	closed := state.Summary.GetLongPositions()[0]
	require.Equal(t, core.CloseReasonStrategy, closed.Reason)
}

func TestBasic_Finish_BacktestUsesLastCandlePlusInterval(t *testing.T) {
	candles := []core.Candle{candle(0, 10), candle(1, 10), candle(2, 10)}
	tr, ctx := newTestTrader(t, candles)

	config := BasicConfig{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 3, Quote: decimal.NewFromInt(10),
		Strategy: StrategyConfig{Name: "scripted", Factory: scriptedFactory(nil)},
		Long:     true,
		Mode:     core.TradingModeBacktest,
	}

	state, err := tr.Initialize(ctx, config)
	require.NoError(t, err)
	require.NoError(t, tr.Run(ctx, state))

	end, ok := state.Summary.End()
	require.True(t, ok)
	require.Equal(t, core.Timestamp(3), end)
}

func TestBasic_Initialize_RejectsShortWithoutMargin(t *testing.T) {
	tr, ctx := newTestTrader(t, nil)
	config := BasicConfig{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 10, Quote: decimal.NewFromInt(10),
		Strategy: StrategyConfig{Name: "scripted", Factory: scriptedFactory(nil)},
		Short:    true,
		Mode:     core.TradingModeBacktest,
	}
	_, err := tr.Initialize(ctx, config)
	require.Error(t, err)
}

func TestBasicConfig_Validate_RequiresLongOrShort(t *testing.T) {
	config := BasicConfig{
		Exchange: "binance", Symbol: "eth-usdt", Interval: 1,
		Start: 0, End: 10, Quote: decimal.NewFromInt(10),
	}
	require.Error(t, config.Validate())
}
