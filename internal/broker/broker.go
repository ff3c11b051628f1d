// Package broker executes position opens/closes for the Basic Trader,
// either against a live exchange (via the Broker interface) or against a
// fee/filter-aware fill simulator used in backtests.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

// Broker places and unwinds positions against a live or paper venue,
// returning the fills the exchange actually reports. The Basic Trader calls
// this in TradingModePaper/TradingModeLive; in TradingModeBacktest it uses
// Simulator directly instead.
type Broker interface {
	// Buy spends quote of the quote asset buying symbol at market, returning
	// the resulting fills.
	Buy(ctx context.Context, exchangeName, symbol string, quote decimal.Decimal) ([]core.Fill, error)

	// Sell sells size of the base asset of symbol at market.
	Sell(ctx context.Context, exchangeName, symbol string, size decimal.Decimal) ([]core.Fill, error)

	// BuyMargin borrows and sells size of the base asset of symbol short,
	// returning the fills and the amount actually borrowed.
	BuyMargin(ctx context.Context, exchangeName, symbol string, size decimal.Decimal) ([]core.Fill, decimal.Decimal, error)

	// SellMargin buys back size of the base asset of symbol to close a short.
	SellMargin(ctx context.Context, exchangeName, symbol string, size decimal.Decimal) ([]core.Fill, error)
}
