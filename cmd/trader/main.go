// Command trader runs a single Basic Trader session: backtest over a fixed
// historical span, or paper/live against a registered exchange adapter,
// exactly the configuration surface spec'd in the platform's external
// interfaces (the flag table below).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/storage"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/internal/trader"
	"jax-research-platform/libs/database"
	"jax-research-platform/libs/observability"
)

var (
	version   = "0.1.0"
	startTime = time.Now()
)

// flags is the CLI's raw, unvalidated input — one field per --flag. A
// one-shot run takes its configuration as command-line arguments rather
// than a long-lived daemon's environment, so buildConfig below is the only
// place raw flags get parsed into validated domain types.
type flags struct {
	Exchange           string `validate:"required"`
	Symbol             string `validate:"required"`
	Interval           int64  `validate:"required,gt=0"`
	Start              int64
	End                int64 // 0 means live mode: run until cancelled
	Quote              string `validate:"required"`
	Long               bool
	Short              bool
	StopLoss           string
	TakeProfit         string
	TrailStopLoss      bool
	MissedCandlePolicy string `validate:"oneof=ignore restart last"`
	AdjustStart        bool
	CloseOnExit        bool
	Strategy           string `validate:"required"`
	StrategyParams     string
	DSN                string
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
	flag.StringVar(&f.Symbol, "symbol", "", "base-quote symbol, lower-case")
	flag.Int64Var(&f.Interval, "interval", 0, "candle interval in milliseconds")
	flag.Int64Var(&f.Start, "start", 0, "backtest/warm-up start time, ms since epoch")
	flag.Int64Var(&f.End, "end", 0, "backtest end time, ms since epoch (0 with live mode means run until cancelled)")
	flag.StringVar(&f.Quote, "quote", "", "initial quote capital")
	flag.BoolVar(&f.Long, "long", true, "trade the long side")
	flag.BoolVar(&f.Short, "short", false, "trade the short side")
	flag.StringVar(&f.StopLoss, "stop-loss", "0", "stop-loss fraction, 0 disables")
	flag.StringVar(&f.TakeProfit, "take-profit", "0", "take-profit fraction, 0 disables")
	flag.BoolVar(&f.TrailStopLoss, "trail-stop-loss", false, "use the trailing stop-loss variant")
	flag.StringVar(&f.MissedCandlePolicy, "missed-candle-policy", "ignore", "one of ignore, restart, last")
	flag.BoolVar(&f.AdjustStart, "adjust-start", true, "back up Next to warm the strategy up before start")
	flag.BoolVar(&f.CloseOnExit, "close-on-exit", true, "close any open position on cancel/graceful end")
	flag.StringVar(&f.Strategy, "strategy", "", "registered strategy name")
	flag.StringVar(&f.StrategyParams, "strategy-params", "{}", "strategy parameters as a JSON object")
	flag.StringVar(&f.DSN, "dsn", os.Getenv("JUNO__STORAGE__DSN"), "Postgres DSN; empty runs against an in-memory store")
	flag.Parse()
	return f
}

func mainRun(ctx context.Context, f flags) error {
	log.Printf("starting trader v%s", version)

	config, err := buildConfig(f)
	if err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	ctx = observability.WithRunInfo(ctx, observability.RunInfo{
		RunID: fmt.Sprintf("trader-%d", startTime.UnixMilli()),
		Exchange: config.Exchange, Symbol: config.Symbol,
		Interval: strconv.FormatInt(int64(config.Interval), 10),
	})

	ex, err := exchange.Build(f.Exchange)
	if err != nil {
		return fmt.Errorf("build exchange: %w", err)
	}

	store, err := buildStore(ctx, f.DSN)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	fetcher, err := informant.BuildFetcher(f.Exchange)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}

	ch := chandler.New(store, []exchange.Exchange{ex})
	inf := informant.New([]exchange.Exchange{ex}, fetcher, informant.WithStore(store))
	go inf.Run(ctx)
	if err := inf.Ready(ctx, config.Exchange); err != nil {
		return fmt.Errorf("informant not ready: %w", err)
	}

	registry := strategy.NewDefaultRegistry()
	registered, err := registry.Get(config.Strategy.Name)
	if err != nil {
		return fmt.Errorf("resolve strategy: %w", err)
	}
	config.Strategy.Factory = registered.Factory

	tr := trader.New(ch, inf)
	state, err := tr.Initialize(ctx, config)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	subID, events := tr.Events().Subscribe(16)
	defer tr.Events().Unsubscribe(subID)
	go func() {
		for ev := range events {
			if ev.Kind == trader.EventFinished {
				log.Printf("trader finished: %s", config.Symbol)
			}
		}
	}()

	if err := tr.Run(ctx, state); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run: %w", err)
	}

	return printSummary(state)
}

func buildConfig(f flags) (trader.BasicConfig, error) {
	if f.End != 0 && f.End <= f.Start {
		return trader.BasicConfig{}, fmt.Errorf("end must be > start, or 0 to run live until cancelled")
	}
	quote, err := decimal.NewFromString(f.Quote)
	if err != nil {
		return trader.BasicConfig{}, fmt.Errorf("quote: %w", err)
	}
	stopLoss, err := decimal.NewFromString(f.StopLoss)
	if err != nil {
		return trader.BasicConfig{}, fmt.Errorf("stop-loss: %w", err)
	}
	takeProfit, err := decimal.NewFromString(f.TakeProfit)
	if err != nil {
		return trader.BasicConfig{}, fmt.Errorf("take-profit: %w", err)
	}
	policy, err := parseMissedCandlePolicy(f.MissedCandlePolicy)
	if err != nil {
		return trader.BasicConfig{}, err
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(f.StrategyParams), &params); err != nil {
		return trader.BasicConfig{}, fmt.Errorf("strategy-params: %w", err)
	}

	mode := core.TradingModeBacktest
	if f.End == 0 {
		mode = core.TradingModeLive
	}

	return trader.BasicConfig{
		Exchange: f.Exchange,
		Symbol:   strings.ToLower(f.Symbol),
		Interval: f.Interval,
		Start:    f.Start,
		End:      f.End,
		Quote:    quote,
		Strategy: trader.StrategyConfig{
			Name:   f.Strategy,
			Params: params,
		},
		StopLossFraction:   stopLoss,
		TrailStopLoss:      f.TrailStopLoss,
		TakeProfitFraction: takeProfit,
		MissedCandlePolicy: policy,
		AdjustStart:        f.AdjustStart,
		Long:               f.Long,
		Short:              f.Short,
		CloseOnExit:        f.CloseOnExit,
		Mode:               mode,
	}, nil
}

func parseMissedCandlePolicy(s string) (core.MissedCandlePolicy, error) {
	switch s {
	case "ignore", "":
		return core.MissedCandleIgnore, nil
	case "restart":
		return core.MissedCandleRestart, nil
	case "last":
		return core.MissedCandleLast, nil
	default:
		return 0, fmt.Errorf("missed-candle-policy: unknown value %q", s)
	}
}

// buildStore wires the Postgres-backed Store when a DSN is supplied, or
// falls back to the in-memory Store for offline/local backtests.
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

func printSummary(state *trader.BasicState) error {
	summary := state.Summary
	out := map[string]any{
		"symbol":                  state.Config.Symbol,
		"profit":                  summary.Profit().String(),
		"num_positions":           summary.NumPositions(),
		"num_positions_in_profit": summary.NumPositionsInProfit(),
		"num_positions_in_loss":   summary.NumPositionsInLoss(),
		"mean_position_profit":    summary.MeanPositionProfit().String(),
		"max_drawdown":            summary.MaxDrawdown().String(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
