// Package trades implements the gap-aware historical trade cache: the same
// span-fill shape Chandler uses for candles, but for raw Trade ticks, which
// Chandler itself falls back to when a venue cannot stream candles directly.
package trades

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/storage"
	"jax-research-platform/libs/observability"
)

// ResetWindow is how long may elapse between failed fetch attempts before
// the retry budget resets; a long-running backfill should not be killed by
// one failure every few hours.
const ResetWindow = 300 * time.Second

// Trades serves historical trades for [start,end), filling gaps from the
// venue and persisting them so a repeated request never re-fetches.
type Trades struct {
	store     storage.Store
	exchanges map[string]exchange.Exchange
}

// New builds a Trades cache over store, indexing exchanges by Name().
func New(store storage.Store, exchanges []exchange.Exchange) *Trades {
	byName := make(map[string]exchange.Exchange, len(exchanges))
	for _, ex := range exchanges {
		byName[ex.Name()] = ex
	}
	return &Trades{store: store, exchanges: byName}
}

type labeledSpan struct {
	span   core.Span
	stored bool
}

// StreamTrades returns every trade in [start,end), using whatever is
// already stored and backfilling the rest from the exchange.
func (t *Trades) StreamTrades(ctx context.Context, exchangeName, symbol string, start, end core.Timestamp) ([]core.Trade, error) {
	shard, key := exchangeName, symbol

	existingSpans, err := t.store.StreamSpans(ctx, shard, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("trades: stream spans: %w", err)
	}
	missing := storage.MissingSpans(existingSpans, start, end)

	spans := make([]labeledSpan, 0, len(existingSpans)+len(missing))
	for _, s := range existingSpans {
		spans = append(spans, labeledSpan{span: s, stored: true})
	}
	for _, s := range missing {
		spans = append(spans, labeledSpan{span: s, stored: false})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].span.Start < spans[j].span.Start })

	var out []core.Trade
	for _, ls := range spans {
		if ls.stored {
			items, err := t.store.StreamTrades(ctx, shard, key, ls.span.Start, ls.span.End)
			if err != nil {
				return nil, fmt.Errorf("trades: stream stored trades: %w", err)
			}
			out = append(out, items...)
			continue
		}

		ex, ok := t.exchanges[exchangeName]
		if !ok {
			return nil, fmt.Errorf("trades: unknown exchange %q", exchangeName)
		}
		if !ex.Capabilities().CanStreamHistoricalTrades {
			return nil, fmt.Errorf("%w: %s cannot stream historical trades", exchange.ErrUnsupported, exchangeName)
		}

		fetched, err := t.fetchAndStore(ctx, ex, shard, key, symbol, ls.span)
		if err != nil {
			return nil, err
		}
		out = append(out, fetched...)
	}
	return out, nil
}

func (t *Trades) fetchAndStore(ctx context.Context, ex exchange.Exchange, shard, key, symbol string, span core.Span) ([]core.Trade, error) {
	observability.LogFetchStart(ctx, ex.Name(), "stream_historical_trades", span)
	start := time.Now()

	var fetched []core.Trade
	err := exchange.RetryWithResetWindow(ctx, 3, ResetWindow, func(ctx context.Context) error {
		fetched = fetched[:0]
		stream, err := ex.StreamHistoricalTrades(ctx, symbol, span.Start, span.End)
		if err != nil {
			return err
		}
		defer stream.Close()
		for {
			tr, err := stream.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return err
			}
			fetched = append(fetched, tr)
		}
		return nil
	})
	observability.LogFetchEnd(ctx, ex.Name(), "stream_historical_trades", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("trades: fetch %s/%s [%d,%d): %w", shard, key, span.Start, span.End, err)
	}

	if err := t.store.StoreTradesAndSpan(ctx, shard, key, fetched, span); err != nil {
		return nil, fmt.Errorf("trades: store: %w", err)
	}
	return fetched, nil
}
