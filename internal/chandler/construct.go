package chandler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

// constructCandlesFromTrades buckets raw trades into closed candles aligned
// to interval boundaries, for venues that cannot stream candles at all.
func (c *Chandler) constructCandlesFromTrades(ctx context.Context, exchangeName, symbol string, interval, start, end core.Timestamp) ([]core.Candle, error) {
	if c.trades == nil {
		return nil, fmt.Errorf("chandler: trades component not configured, cannot construct candles for %s", exchangeName)
	}

	raw, err := c.trades.StreamTrades(ctx, exchangeName, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("chandler: construct candles: %w", err)
	}

	var out []core.Candle
	current := start
	next := current + interval
	var open, high, low, cls, volume decimal.Decimal
	isFirst := true

	flush := func() {
		out = append(out, core.Candle{
			Time: current, Open: open, High: high, Low: low, Close: cls, Volume: volume, Closed: true,
		})
	}

	for _, t := range raw {
		// A single rollover check (not a loop), matching the upstream
		// trade-bucketing behavior: a trade far past the next boundary still
		// starts exactly one new bucket, it does not backfill empty ones.
		if t.Time >= next {
			if !isFirst {
				flush()
			}
			current = next
			next = current + interval
			open, high, low, cls, volume = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
			isFirst = true
		}
		if isFirst {
			open = t.Price
			high = t.Price
			low = t.Price
			isFirst = false
		} else {
			if t.Price.GreaterThan(high) {
				high = t.Price
			}
			if t.Price.LessThan(low) {
				low = t.Price
			}
		}
		cls = t.Price
		volume = volume.Add(t.Size)
	}
	if !isFirst {
		flush()
	}
	return out, nil
}
