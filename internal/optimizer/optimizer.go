// Package optimizer searches a strategy's parameter space for the
// configuration that performs best across the multi-objective fitness
// tuple the solver reduces a backtest to, using a genetic algorithm
// (NSGA-II selection over a mu+lambda evolution loop) rather than grid or
// random search.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/prices"
	"jax-research-platform/internal/solver"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/internal/trader"
	"jax-research-platform/libs/observability"
)

// Config is a search request: everything fixed (exchange, quote, strategy
// type, optimization span, population/generation sizes) and everything
// that MAY be fixed — a nil pointer means "let evolution pick it", a
// non-nil pointer pins that gene to a Constant for the whole run.
type Config struct {
	Exchange       string
	Quote          decimal.Decimal
	StrategyName   string
	StrategyParams map[string]any

	Symbols   []string
	Intervals []core.Interval
	Start     core.Timestamp
	End       core.Timestamp

	MissedCandlePolicy *core.MissedCandlePolicy
	StopLossFraction   *decimal.Decimal
	TrailStopLoss      *bool
	TakeProfitFraction *decimal.Decimal
	Long               *bool
	Short              *bool

	PopulationSize      int
	MaxGenerations      int
	MutationProbability float64
	Seed                int64
	FiatAsset           string
}

func (c Config) validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("optimizer: config: exchange is required")
	}
	if !c.Quote.IsPositive() {
		return fmt.Errorf("optimizer: config: quote must be > 0")
	}
	if c.StrategyName == "" {
		return fmt.Errorf("optimizer: config: strategy name is required")
	}
	if c.End <= c.Start {
		return fmt.Errorf("optimizer: config: end must be > start")
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("optimizer: config: population size must be > 0")
	}
	if c.MaxGenerations <= 0 {
		return fmt.Errorf("optimizer: config: max generations must be > 0")
	}
	if c.MutationProbability < 0 || c.MutationProbability > 1 {
		return fmt.Errorf("optimizer: config: mutation probability must be in [0,1]")
	}
	return nil
}

// Summary is the search's outcome: the best individual found, decoded into
// a ready-to-run trading config, the trading summary its backtest produced,
// and the resolved strategy parameters that backtest used.
type Summary struct {
	TradingConfig  trader.BasicConfig
	TradingSummary *core.TradingSummary
	StrategyParams map[string]any
	Fitness        solver.FitnessValues
}

// Optimizer runs the search. It shares the same Chandler/Informant the
// live Trader uses, so the candles and fees/filters it evaluates against
// are exactly what a subsequent live or paper run would see.
type Optimizer struct {
	solver    solver.Solver
	chandler  *chandler.Chandler
	informant *informant.Informant
	prices    *prices.Prices
	registry  *strategy.Registry
	metrics   *observability.PlatformMetrics
}

// Option configures an Optimizer built by New.
type Option func(*Optimizer)

// WithMetrics records each generation's wall time and Pareto front size
// into m, in addition to the plain LogEvent call Run always makes.
func WithMetrics(m *observability.PlatformMetrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// New builds an Optimizer.
func New(
	s solver.Solver, ch *chandler.Chandler, inf *informant.Informant,
	pr *prices.Prices, reg *strategy.Registry, opts ...Option,
) *Optimizer {
	o := &Optimizer{solver: s, chandler: ch, informant: inf, prices: pr, registry: reg}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run searches config's parameter space and returns the best individual
// found, validated against a direct trader.Basic replay before returning.
func (o *Optimizer) Run(ctx context.Context, config Config) (Summary, error) {
	if err := config.validate(); err != nil {
		return Summary{}, err
	}

	registered, err := o.registry.Get(config.StrategyName)
	if err != nil {
		return Summary{}, fmt.Errorf("optimizer: %w", err)
	}

	symbols := config.Symbols
	if len(symbols) == 0 {
		symbols, err = o.informant.ListSymbols(config.Exchange)
		if err != nil {
			return Summary{}, fmt.Errorf("optimizer: %w", err)
		}
	}
	intervals := config.Intervals
	if len(intervals) == 0 {
		intervals, err = o.informant.ListCandleIntervals(config.Exchange)
		if err != nil {
			return Summary{}, fmt.Errorf("optimizer: %w", err)
		}
	}

	if len(symbols) == 0 {
		return Summary{}, fmt.Errorf("optimizer: %s lists no symbols to search", config.Exchange)
	}
	if len(intervals) == 0 {
		return Summary{}, fmt.Errorf("optimizer: %s lists no candle intervals to search", config.Exchange)
	}

	l := buildLayout(config, symbols, intervals, registered.Meta)

	candles, fiatDaily, benchmarkGReturns, err := o.prepareMarketData(ctx, config, symbols, intervals)
	if err != nil {
		return Summary{}, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	observability.LogEvent(ctx, "info", "optimizer_seed", map[string]any{
		"seed": config.Seed, "population_size": config.PopulationSize, "max_generations": config.MaxGenerations,
	})

	type feesFilters struct {
		fees    core.Fees
		filters core.Filters
	}
	symbolFeesFilters := make(map[string]feesFilters, len(symbols))
	for _, s := range symbols {
		fees, filters, err := o.informant.GetFeesFilters(config.Exchange, s)
		if err != nil {
			return Summary{}, fmt.Errorf("optimizer: %w", err)
		}
		symbolFeesFilters[s] = feesFilters{fees: fees, filters: filters}
	}

	evaluate := func(ind *Individual) error {
		d := decode(l, *ind)
		key := candleKey{d.symbol, d.interval}
		if len(candles[key]) == 0 {
			// No candles for this symbol/interval over the run's span (gap
			// in available history). Scored at the zero vector so selection
			// prunes it out rather than the whole search failing.
			ind.Fitness = solver.FitnessValues{}
			return nil
		}
		fitness, err := o.solver.Solve(ctx, solver.Config{
			Exchange: config.Exchange, Symbol: d.symbol, Interval: d.interval,
			Start: config.Start, End: config.End, Quote: config.Quote,
			Candles: candles[key],
			Fees:    symbolFeesFilters[d.symbol].fees, Filters: symbolFeesFilters[d.symbol].filters,
			Strategy: trader.StrategyConfig{
				Name: config.StrategyName, Factory: registered.Factory, Params: d.strategyParams,
			},
			StopLossFraction:   d.stopLossFraction,
			TrailStopLoss:      d.trailStopLoss,
			TakeProfitFraction: d.takeProfitFraction,
			Long:               d.long,
			Short:              d.short,
			MissedCandlePolicy: d.missedCandlePolicy,
			AdjustStart:        true,
			FiatDailyPrices:    fiatDaily,
			BenchmarkGReturns:  benchmarkGReturns,
		})
		if err != nil {
			return err
		}
		ind.Fitness = fitness
		return nil
	}

	population := make([]Individual, config.PopulationSize)
	for i := range population {
		population[i] = newIndividual(l, rng)
		if err := evaluate(&population[i]); err != nil {
			return Summary{}, fmt.Errorf("optimizer: evaluating initial population: %w", err)
		}
	}
	population = selNSGA2(population, config.PopulationSize)

	indpb := l.indpb()
	cxpb := 1.0 - config.MutationProbability

	for gen := 0; gen < config.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			break
		}
		genStart := time.Now()

		offspring := make([]Individual, 0, config.PopulationSize)
		for len(offspring) < config.PopulationSize {
			parentA := population[rng.Intn(len(population))]
			switch r := rng.Float64(); {
			case r < cxpb && len(population) > 1:
				parentB := population[rng.Intn(len(population))]
				childA, childB := clone(parentA), clone(parentB)
				cxUniform(rng, childA, childB, indpb)
				offspring = append(offspring, childA)
			case r < cxpb+config.MutationProbability:
				child := clone(parentA)
				mutIndividual(rng, child, l)
				offspring = append(offspring, child)
			default:
				offspring = append(offspring, clone(parentA))
			}
		}

		for i := range offspring {
			if err := evaluate(&offspring[i]); err != nil {
				return Summary{}, fmt.Errorf("optimizer: evaluating generation %d: %w", gen, err)
			}
		}

		population = selNSGA2(append(population, offspring...), config.PopulationSize)
		genDuration := time.Since(genStart)
		observability.LogEvent(ctx, "info", "optimizer_generation", map[string]any{
			"generation": gen, "population_size": len(population),
		})
		objs := make([][10]float64, len(population))
		for i := range population {
			objs[i] = objectives(population[i].Fitness)
		}
		frontSize := len(fastNonDominatedSort(objs)[0].indices)
		observability.RecordGenerationDuration(ctx, gen, genDuration, frontSize)
		if o.metrics != nil {
			o.metrics.GenerationLatency.ObserveDuration(genDuration)
			o.metrics.FrontSize.Set(float64(frontSize))
		}
	}

	best := bestByFrontZero(population)
	return o.buildSummary(ctx, config, l, best)
}

type candleKey struct {
	symbol   string
	interval core.Interval
}

// prepareMarketData fetches every (symbol, interval) candle series the
// search might evaluate, plus the fiat daily price series and benchmark
// (BTC) log returns the solver needs for Sharpe/Sortino/Alpha, all
// concurrently, so a population-sized search pays for the slowest single
// fetch rather than the sum of all of them.
func (o *Optimizer) prepareMarketData(
	ctx context.Context, config Config, symbols []string, intervals []core.Interval,
) (map[candleKey][]core.Candle, []decimal.Decimal, []float64, error) {
	g, gctx := errgroup.WithContext(ctx)

	candles := make(map[candleKey][]core.Candle)
	var candlesMu sync.Mutex
	for _, symbol := range symbols {
		for _, interval := range intervals {
			symbol, interval := symbol, interval
			g.Go(func() error {
				series, err := o.chandler.ListCandles(
					gctx, config.Exchange, symbol, interval, config.Start, config.End, true, true,
				)
				if err != nil {
					return fmt.Errorf("candles for %s %d: %w", symbol, interval, err)
				}
				candlesMu.Lock()
				candles[candleKey{symbol, interval}] = series
				candlesMu.Unlock()
				return nil
			})
		}
	}

	var fiatDaily []decimal.Decimal
	g.Go(func() error {
		_, quoteAsset := core.UnpackSymbol(symbols[0])
		series, err := o.prices.FiatSeries(gctx, config.Exchange, quoteAsset, config.FiatAsset, config.Start, config.End)
		if err != nil {
			return fmt.Errorf("fiat series: %w", err)
		}
		fiatDaily = series
		return nil
	})

	var benchmarkGReturns []float64
	g.Go(func() error {
		series, err := o.prices.FiatSeries(gctx, config.Exchange, "btc", config.FiatAsset, config.Start, config.End)
		if err != nil {
			return fmt.Errorf("benchmark series: %w", err)
		}
		benchmarkGReturns = solver.LogReturns(series)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("optimizer: preparing market data: %w", err)
	}
	return candles, fiatDaily, benchmarkGReturns, nil
}

// buildSummary reconstructs the best individual's full trading config and
// re-runs it directly through trader.Basic (bypassing the solver's own
// in-memory replay) as the cross-check spec §4.8 requires: the resulting
// TradingSummary's profit must agree with the fitness the solver already
// reported for the same individual to within 1e-6, or the search is
// reporting a result it cannot reproduce.
func (o *Optimizer) buildSummary(ctx context.Context, config Config, l layout, best Individual) (Summary, error) {
	d := decode(l, best)
	registered, err := o.registry.Get(config.StrategyName)
	if err != nil {
		return Summary{}, fmt.Errorf("optimizer: %w", err)
	}

	basicConfig := trader.BasicConfig{
		Exchange: config.Exchange, Symbol: d.symbol, Interval: d.interval,
		Start: config.Start, End: config.End, Quote: config.Quote,
		Strategy: trader.StrategyConfig{
			Name: config.StrategyName, Factory: registered.Factory, Params: d.strategyParams,
		},
		StopLossFraction:   d.stopLossFraction,
		TrailStopLoss:      d.trailStopLoss,
		TakeProfitFraction: d.takeProfitFraction,
		MissedCandlePolicy: d.missedCandlePolicy,
		AdjustStart:        true,
		Long:               d.long,
		Short:              d.short,
		Mode:               core.TradingModeBacktest,
	}

	tr := trader.New(o.chandler, o.informant)
	state, err := tr.Initialize(ctx, basicConfig)
	if err != nil {
		return Summary{}, fmt.Errorf("optimizer: cross-check: %w", err)
	}
	if err := tr.Run(ctx, state); err != nil {
		return Summary{}, fmt.Errorf("optimizer: cross-check: %w", err)
	}

	replayedProfit, _ := state.Summary.Profit().Float64()
	if math.Abs(replayedProfit-best.Fitness.Profit) > 1e-6 {
		return Summary{}, fmt.Errorf(
			"optimizer: cross-check: trader replay profit %.8f does not match solver fitness %.8f",
			replayedProfit, best.Fitness.Profit,
		)
	}

	return Summary{
		TradingConfig:  basicConfig,
		TradingSummary: state.Summary,
		StrategyParams: d.strategyParams,
		Fitness:        best.Fitness,
	}, nil
}
