// Package solver evaluates a strategy+risk-parameter configuration against
// a fixed slice of candles and reduces the resulting run to the fitness
// tuple the optimizer's NSGA-II selection scores gene sets by.
package solver

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/storage"
	"jax-research-platform/internal/trader"
)

// dayMS is the daily bucket size positions are mark-to-market'd at,
// matching internal/prices.DayMS.
const dayMS int64 = 24 * 60 * 60 * 1000

// Config is a fully materialized backtest input: the candles have already
// been fetched, fees/filters resolved, and the benchmark/fiat price series
// computed, so Solve never touches the network.
type Config struct {
	Exchange string
	Symbol   string
	Interval core.Interval
	Start    core.Timestamp
	End      core.Timestamp
	Quote    decimal.Decimal

	Candles []core.Candle
	Fees    core.Fees
	Filters core.Filters

	Strategy trader.StrategyConfig

	StopLossFraction   decimal.Decimal
	TrailStopLoss      bool
	TakeProfitFraction decimal.Decimal
	Long               bool
	Short              bool
	MissedCandlePolicy core.MissedCandlePolicy
	AdjustStart        bool

	// FiatDailyPrices is the quote asset's daily price in fiat across the
	// run, used to mark the portfolio to market for Sharpe/Sortino/Alpha.
	FiatDailyPrices []decimal.Decimal
	// BenchmarkGReturns is the benchmark's daily log returns over the same
	// span, used to compute Alpha.
	BenchmarkGReturns []float64
}

// FitnessValues is the fixed-arity tuple the optimizer selects on. Every
// field is signed as the spec enumerates (profit/mean_position_profit/
// num_positions_in_profit/sharpe/sortino/alpha maximized, the rest
// minimized). A Solver that cannot compute a field (no fiat price series
// supplied, too few closed positions) returns that field's zero value;
// callers must not read a zero field as "actually zero" without checking
// the inputs that would have produced it.
type FitnessValues struct {
	Profit               float64
	MeanDrawdown         float64
	MaxDrawdown          float64
	MeanPositionProfit   float64
	MeanPositionDuration int64
	NumPositionsInProfit int
	NumPositionsInLoss   int
	Sharpe               float64
	Sortino              float64
	Alpha                float64
}

// Solver evaluates config and reduces the resulting run to FitnessValues.
type Solver interface {
	Solve(ctx context.Context, config Config) (FitnessValues, error)
}

// Native runs an actual internal/trader.Basic backtest in-process over
// Config.Candles and reduces its TradingSummary to FitnessValues — the
// same engine a live/paper run drives, so fitness values are guaranteed to
// match a real Trader run to the last decimal place rather than merely
// approximating it.
type Native struct{}

// NewNative builds a Native solver.
func NewNative() *Native { return &Native{} }

// Solve implements Solver.
func (n *Native) Solve(ctx context.Context, config Config) (FitnessValues, error) {
	store := storage.NewMemory()
	ex := &candleExchange{name: config.Exchange, candles: config.Candles}
	ch := chandler.New(store, []exchange.Exchange{ex})

	fetcher := &fixedFetcher{info: informant.ExchangeInfo{
		Fees:             map[string]core.Fees{"__all__": config.Fees},
		Filters:          map[string]core.Filters{config.Symbol: config.Filters},
		MarginMultiplier: 2,
	}}
	inf := informant.New([]exchange.Exchange{ex}, fetcher)

	infCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go inf.Run(infCtx)
	if err := inf.Ready(ctx, config.Exchange); err != nil {
		return FitnessValues{}, fmt.Errorf("solver: %w", err)
	}

	tr := trader.New(ch, inf)
	basicConfig := trader.BasicConfig{
		Exchange: config.Exchange, Symbol: config.Symbol, Interval: config.Interval,
		Start: config.Start, End: config.End, Quote: config.Quote,
		Strategy:           config.Strategy,
		StopLossFraction:   config.StopLossFraction,
		TrailStopLoss:      config.TrailStopLoss,
		TakeProfitFraction: config.TakeProfitFraction,
		MissedCandlePolicy: config.MissedCandlePolicy,
		AdjustStart:        config.AdjustStart,
		Long:               config.Long,
		Short:              config.Short,
		Mode:               core.TradingModeBacktest,
	}

	state, err := tr.Initialize(ctx, basicConfig)
	if err != nil {
		return FitnessValues{}, fmt.Errorf("solver: %w", err)
	}
	if err := tr.Run(ctx, state); err != nil {
		return FitnessValues{}, fmt.Errorf("solver: %w", err)
	}

	return reduce(state.Summary, config), nil
}

func reduce(summary *core.TradingSummary, config Config) FitnessValues {
	f := FitnessValues{
		Profit:               toFloat(summary.Profit()),
		MeanDrawdown:         toFloat(summary.MeanDrawdown()),
		MaxDrawdown:          toFloat(summary.MaxDrawdown()),
		MeanPositionProfit:   toFloat(summary.MeanPositionProfit()),
		MeanPositionDuration: int64(summary.MeanPositionDuration()),
		NumPositionsInProfit: summary.NumPositionsInProfit(),
		NumPositionsInLoss:   summary.NumPositionsInLoss(),
	}

	if len(config.FiatDailyPrices) < 2 {
		return f
	}
	performance := markToMarket(summary, config)
	if len(performance) < 2 {
		return f
	}
	gReturns := logReturns(performance)
	sharpe, sortino := sharpeSortino(gReturns)
	f.Sharpe = sharpe
	f.Sortino = sortino

	if len(config.BenchmarkGReturns) > 0 {
		f.Alpha = alpha(gReturns, config.BenchmarkGReturns, annualizedReturn(gReturns))
	}
	return f
}

// markToMarket marks the run's quote-asset holdings (starting quote plus
// realized profit up to each day) against the fiat price series, bucketed
// by the day each position closed. Simplified to a single quote asset rather than a multi-asset
// portfolio, since the Basic Trader only ever holds one symbol's quote at
// a time.
func markToMarket(summary *core.TradingSummary, config Config) []float64 {
	positions := summary.GetPositions()
	holdings := summary.Quote
	dayProfit := make(map[int]decimal.Decimal)
	for _, p := range positions {
		closedAt := p.OpenedAt()
		switch v := p.(type) {
		case core.Long:
			closedAt = v.CloseTime
		case core.Short:
			closedAt = v.CloseTime
		}
		day := int((core.FloorMultiple(closedAt, dayMS) - core.FloorMultiple(config.Start, dayMS)) / dayMS)
		dayProfit[day] = dayProfit[day].Add(p.Profit())
	}

	out := make([]float64, len(config.FiatDailyPrices))
	for i, fiatPrice := range config.FiatDailyPrices {
		if delta, ok := dayProfit[i]; ok {
			holdings = holdings.Add(delta)
		}
		out[i] = toFloat(holdings.Mul(fiatPrice))
	}
	return out
}

// LogReturns computes natural-log returns over a decimal price series — the
// same transform markToMarket feeds into Sharpe/Sortino/Alpha, exported so
// callers preparing a benchmark series (e.g. the optimizer, over BTC daily
// prices) can reuse it instead of duplicating the float conversion.
func LogReturns(prices []decimal.Decimal) []float64 {
	performance := make([]float64, len(prices))
	for i, p := range prices {
		performance[i] = toFloat(p)
	}
	return logReturns(performance)
}

func logReturns(performance []float64) []float64 {
	out := make([]float64, 0, len(performance)-1)
	for i := 1; i < len(performance); i++ {
		if performance[i-1] == 0 {
			continue
		}
		ret := performance[i]/performance[i-1] - 1
		out = append(out, math.Log(ret+1))
	}
	return out
}

const tradingDaysPerYear = 365

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func annualizedReturn(gReturns []float64) float64 {
	return tradingDaysPerYear * mean(gReturns)
}

func sharpeSortino(gReturns []float64) (sharpe, sortino float64) {
	m := mean(gReturns)
	annReturn := tradingDaysPerYear * m
	annVol := math.Sqrt(tradingDaysPerYear) * stddev(gReturns, m)

	var negative []float64
	for _, r := range gReturns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	annDownside := math.Sqrt(tradingDaysPerYear) * stddev(negative, mean(negative))

	if annVol != 0 {
		sharpe = annReturn / annVol
	}
	if annDownside != 0 {
		sortino = annReturn / annDownside
	}
	return sharpe, sortino
}

// alpha is Jensen's alpha: the portfolio's annualized return in excess of
// what its covariance with the benchmark would predict.
func alpha(portfolioGReturns, benchmarkGReturns []float64, portfolioAnnReturn float64) float64 {
	n := len(portfolioGReturns)
	if len(benchmarkGReturns) < n {
		n = len(benchmarkGReturns)
	}
	if n < 2 {
		return 0
	}
	p := portfolioGReturns[:n]
	b := benchmarkGReturns[:n]
	beta := covariance(p, b) / variance(b)
	return portfolioAnnReturn - beta*tradingDaysPerYear*mean(b)
}

func covariance(a, b []float64) float64 {
	ma, mb := mean(a), mean(b)
	sum := 0.0
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	if len(a) < 2 {
		return 0
	}
	return sum / float64(len(a)-1)
}

func variance(a []float64) float64 {
	m := mean(a)
	v := stddev(a, m)
	return v * v
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// candleExchange replays a fixed candle slice as historical data; the
// solver's native backtest never places orders or streams live candles.
type candleExchange struct {
	exchange.Exchange
	name    string
	candles []core.Candle
}

func (e *candleExchange) Name() string { return e.name }
func (e *candleExchange) Capabilities() exchange.Capabilities {
	return exchange.Capabilities{CanStreamHistoricalCandles: true}
}
func (e *candleExchange) StreamHistoricalCandles(
	ctx context.Context, symbol string, interval core.Interval, start, end core.Timestamp,
) (exchange.CandleStream, error) {
	var in []core.Candle
	for _, c := range e.candles {
		if c.Time >= start && c.Time < end {
			in = append(in, c)
		}
	}
	return &sliceCandleStream{items: in}, nil
}

type sliceCandleStream struct {
	items []core.Candle
	i     int
}

func (s *sliceCandleStream) Next(context.Context) (core.Candle, error) {
	if s.i >= len(s.items) {
		return core.Candle{}, io.EOF
	}
	c := s.items[s.i]
	s.i++
	return c, nil
}
func (s *sliceCandleStream) Close() error { return nil }

type fixedFetcher struct{ info informant.ExchangeInfo }

func (f *fixedFetcher) FetchExchangeInfo(context.Context, exchange.Exchange) (informant.ExchangeInfo, error) {
	return f.info, nil
}
