// Command optimize runs an NSGA-II parameter search for a registered
// strategy over a historical span and prints the best configuration found,
// cross-checked against a direct Trader replay.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/optimizer"
	"jax-research-platform/internal/prices"
	"jax-research-platform/internal/solver"
	"jax-research-platform/internal/storage"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/libs/database"
	"jax-research-platform/libs/observability"
)

var startTime = time.Now()

// flags mirrors cmd/trader's flag-parsing idiom, extended with the search
// parameters (population/generations/mutation/seed) the trader CLI has no
// equivalent for.
type flags struct {
	Exchange  string `validate:"required"`
	Symbol    string
	Interval  int64
	Start     int64
	End       int64  `validate:"required,gtfield=Start"`
	Quote     string `validate:"required"`
	Strategy  string `validate:"required"`
	FiatAsset string

	Population           int     `validate:"required,gt=0"`
	Generations          int     `validate:"required,gt=0"`
	MutationProbability  float64 `validate:"gte=0,lte=1"`
	Seed                 int64

	DSN string
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()
	if err := validator.New().Struct(f); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mainRun(ctx, f); err != nil {
		if ctx.Err() != nil {
			log.Printf("cancelled: %v", err)
			return 130
		}
		log.Printf("fatal: %v", err)
		return 1
	}
	if ctx.Err() != nil {
		return 130
	}
	return 0
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.Exchange, "exchange", "", "venue name")
	flag.StringVar(&f.Symbol, "symbol", "", "base-quote symbol; empty searches every symbol the venue lists")
	flag.Int64Var(&f.Interval, "interval", 0, "candle interval in milliseconds; 0 searches every interval the venue lists")
	flag.Int64Var(&f.Start, "start", 0, "search span start, ms since epoch")
	flag.Int64Var(&f.End, "end", 0, "search span end, ms since epoch")
	flag.StringVar(&f.Quote, "quote", "", "initial quote capital")
	flag.StringVar(&f.Strategy, "strategy", "", "registered strategy name to search parameters for")
	flag.StringVar(&f.FiatAsset, "fiat-asset", "usdt", "fiat asset Sharpe/Sortino/Alpha are priced in")
	flag.IntVar(&f.Population, "population", 50, "individuals per generation")
	flag.IntVar(&f.Generations, "generations", 30, "generations to evolve")
	flag.Float64Var(&f.MutationProbability, "mutation-probability", 0.3, "per-offspring mutation probability; 1-p is the crossover probability")
	flag.Int64Var(&f.Seed, "seed", 0, "PRNG seed; 0 picks a fixed deterministic seed, not a random one")
	flag.StringVar(&f.DSN, "dsn", os.Getenv("JUNO__STORAGE__DSN"), "Postgres DSN; empty runs against an in-memory store")
	flag.Parse()
	return f
}

func mainRun(ctx context.Context, f flags) error {
	log.Printf("starting optimize")

	ctx = observability.WithRunInfo(ctx, observability.RunInfo{
		RunID: fmt.Sprintf("optimize-%d", startTime.UnixMilli()), Exchange: f.Exchange,
	})

	quote, err := decimal.NewFromString(f.Quote)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	ex, err := exchange.Build(f.Exchange)
	if err != nil {
		return fmt.Errorf("build exchange: %w", err)
	}
	fetcher, err := informant.BuildFetcher(f.Exchange)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}

	store, err := buildStore(ctx, f.DSN)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	ch := chandler.New(store, []exchange.Exchange{ex})
	inf := informant.New([]exchange.Exchange{ex}, fetcher, informant.WithStore(store))
	go inf.Run(ctx)
	if err := inf.Ready(ctx, f.Exchange); err != nil {
		return fmt.Errorf("informant not ready: %w", err)
	}

	pr := prices.New(ch, inf)
	reg := strategy.NewDefaultRegistry()
	metricsRegistry := observability.NewRegistry()
	platformMetrics := observability.NewPlatformMetrics(metricsRegistry)
	opt := optimizer.New(solver.NewNative(), ch, inf, pr, reg, optimizer.WithMetrics(platformMetrics))

	config := optimizer.Config{
		Exchange:             f.Exchange,
		Quote:                quote,
		StrategyName:         f.Strategy,
		Start:                f.Start,
		End:                  f.End,
		PopulationSize:       f.Population,
		MaxGenerations:       f.Generations,
		MutationProbability:  f.MutationProbability,
		Seed:                 f.Seed,
		FiatAsset:            f.FiatAsset,
	}
	if f.Symbol != "" {
		config.Symbols = []string{f.Symbol}
	}
	if f.Interval != 0 {
		config.Intervals = []core.Interval{f.Interval}
	}

	summary, err := opt.Run(ctx, config)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	return printSummary(summary)
}

func buildStore(ctx context.Context, dsn string) (storage.Store, error) {
	if dsn == "" {
		log.Println("no DSN configured, running against an in-memory store")
		return storage.NewMemory(), nil
	}
	cfg := database.DefaultConfig()
	cfg.DSN = dsn
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	pg := storage.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pg, nil
}

func printSummary(summary optimizer.Summary) error {
	out := map[string]any{
		"symbol":           summary.TradingConfig.Symbol,
		"interval":         summary.TradingConfig.Interval,
		"long":             summary.TradingConfig.Long,
		"short":            summary.TradingConfig.Short,
		"stop_loss":        summary.TradingConfig.StopLossFraction.String(),
		"take_profit":      summary.TradingConfig.TakeProfitFraction.String(),
		"trail_stop_loss":  summary.TradingConfig.TrailStopLoss,
		"strategy_params":  summary.StrategyParams,
		"profit":           summary.TradingSummary.Profit().String(),
		"sharpe":           summary.Fitness.Sharpe,
		"sortino":          summary.Fitness.Sortino,
		"alpha":            summary.Fitness.Alpha,
		"max_drawdown":     summary.Fitness.MaxDrawdown,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
