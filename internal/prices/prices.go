// Package prices resolves daily fiat/benchmark price series for the
// optimizer's portfolio statistics: the mark-to-market value of a position
// in its fiat-equivalent at the end of each day of a run.
package prices

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/informant"
)

// DayMS is the daily candle interval prices are always resolved at.
const DayMS core.Interval = 24 * 60 * 60 * 1000

// Prices resolves daily price series, falling back through a symbol chain
// when a venue does not list a direct fiat pair for an asset.
type Prices struct {
	chandler  *chandler.Chandler
	informant *informant.Informant
}

// New builds a Prices resolver over ch and inf.
func New(ch *chandler.Chandler, inf *informant.Informant) *Prices {
	return &Prices{chandler: ch, informant: inf}
}

// DailySeries returns one price per day in [start,end), taken from each
// day's closing candle on symbol.
func (p *Prices) DailySeries(
	ctx context.Context, exchangeName, symbol string, start, end core.Timestamp,
) ([]decimal.Decimal, error) {
	start = core.FloorMultiple(start, int64(DayMS))
	end = core.FloorMultiple(end, int64(DayMS))
	candles, err := p.chandler.ListCandles(ctx, exchangeName, symbol, DayMS, start, end, true, true)
	if err != nil {
		return nil, fmt.Errorf("prices: daily series: %w", err)
	}
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out, nil
}

// FiatSeries resolves a daily series of asset's price in fiatAsset across
// [start,end), in the order spec'd: (a) a direct asset-fiatAsset symbol on
// exchangeName if listed; (b) asset-usdt times usdt-fiatAsset if both are
// listed; (c) an error naming what was tried.
func (p *Prices) FiatSeries(
	ctx context.Context, exchangeName, asset, fiatAsset string, start, end core.Timestamp,
) ([]decimal.Decimal, error) {
	symbols, err := p.informant.ListSymbols(exchangeName)
	if err != nil {
		return nil, fmt.Errorf("prices: fiat series: %w", err)
	}
	listed := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		listed[s] = true
	}

	direct := asset + "-" + fiatAsset
	if listed[direct] {
		return p.DailySeries(ctx, exchangeName, direct, start, end)
	}

	bridgeLeft := asset + "-usdt"
	bridgeRight := "usdt-" + fiatAsset
	if listed[bridgeLeft] && listed[bridgeRight] {
		left, err := p.DailySeries(ctx, exchangeName, bridgeLeft, start, end)
		if err != nil {
			return nil, err
		}
		right, err := p.DailySeries(ctx, exchangeName, bridgeRight, start, end)
		if err != nil {
			return nil, err
		}
		if len(left) != len(right) {
			return nil, fmt.Errorf(
				"prices: fiat series: %s (%d days) and %s (%d days) bridge length mismatch",
				bridgeLeft, len(left), bridgeRight, len(right),
			)
		}
		out := make([]decimal.Decimal, len(left))
		for i := range left {
			out[i] = left[i].Mul(right[i])
		}
		return out, nil
	}

	return nil, fmt.Errorf(
		"prices: fiat series: %s has neither %s nor a %s/%s bridge on %s",
		asset, direct, bridgeLeft, bridgeRight, exchangeName,
	)
}
