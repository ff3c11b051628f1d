package trader

import (
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/strategy"
)

// StrategyConfig names a registered strategy and the parameters to
// construct it with. Carrying Factory+Params (rather than a live instance)
// lets BasicConfig rebuild a fresh strategy on MissedCandleRestart without
// the trader needing to know anything about the strategy's internals.
type StrategyConfig struct {
	Name    string
	Factory strategy.Factory
	Params  map[string]any
}

func (c StrategyConfig) construct() (strategy.Strategy, error) {
	if c.Factory == nil {
		return nil, fmt.Errorf("trader: strategy config %q has no factory", c.Name)
	}
	return c.Factory(c.Params)
}

// BasicConfig is the Basic Trader's full run configuration.
type BasicConfig struct {
	Exchange string
	Symbol   string
	Interval core.Interval
	Start    core.Timestamp
	End      core.Timestamp
	Quote    decimal.Decimal

	Strategy StrategyConfig

	StopLossFraction   decimal.Decimal
	TrailStopLoss      bool
	TakeProfitFraction decimal.Decimal

	MissedCandlePolicy core.MissedCandlePolicy
	AdjustStart        bool

	Long  bool
	Short bool

	CloseOnExit bool
	Mode        core.TradingMode
}

// BaseAsset is the base half of Symbol.
func (c BasicConfig) BaseAsset() string { base, _ := core.UnpackSymbol(c.Symbol); return base }

// QuoteAsset is the quote half of Symbol.
func (c BasicConfig) QuoteAsset() string { _, quote := core.UnpackSymbol(c.Symbol); return quote }

// Validate checks the configuration invariants spec §4.7 enumerates before
// Initialize commits to them.
func (c BasicConfig) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("trader: config: exchange is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("trader: config: symbol is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("trader: config: interval must be positive")
	}
	if c.Start < 0 {
		return fmt.Errorf("trader: config: start must be >= 0")
	}
	if c.End <= c.Start {
		return fmt.Errorf("trader: config: end must be > start")
	}
	if !c.Quote.IsPositive() {
		return fmt.Errorf("trader: config: quote must be > 0")
	}
	if !c.Long && !c.Short {
		return fmt.Errorf("trader: config: at least one of long/short must be enabled")
	}
	return nil
}
