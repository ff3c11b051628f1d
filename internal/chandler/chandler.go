// Package chandler is the gap-aware candle cache: it serves a requested
// [start,end) range of candles from local storage wherever already fetched,
// backfills anything missing from the exchange (or, failing that,
// synthesizes candles from trades), and warns on gaps a venue itself
// dropped.
package chandler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/storage"
	"jax-research-platform/internal/trades"
	"jax-research-platform/libs/observability"
)

// CandleEvent is one item on a candle stream: either a Candle or a terminal
// Err. A stream closes its channel immediately after sending an Err.
type CandleEvent struct {
	Candle core.Candle
	Err    error
}

// Clock abstracts wall-clock time so tests can pin "now".
type Clock func() core.Timestamp

func systemClock() core.Timestamp { return time.Now().UnixMilli() }

// Chandler is the candle cache. One instance serves every (exchange,
// symbol, interval) key; per-key state lives entirely in storage.
type Chandler struct {
	store            storage.Store
	exchanges        map[string]exchange.Exchange
	informant        *informant.Informant
	trades           *trades.Trades
	storageBatchSize int
	clock            Clock
}

// Option configures optional Chandler dependencies.
type Option func(*Chandler)

// WithInformant makes Chandler check interval support against the
// informant's ExchangeInfo intervals. Without an informant every interval
// is treated as supported; the venue itself is never asked.
func WithInformant(inf *informant.Informant) Option {
	return func(c *Chandler) { c.informant = inf }
}

// WithTrades enables synthesizing candles from trades when a venue cannot
// stream candles at all.
func WithTrades(tr *trades.Trades) Option {
	return func(c *Chandler) { c.trades = tr }
}

// WithStorageBatchSize overrides the default flush batch size (1000).
func WithStorageBatchSize(n int) Option {
	return func(c *Chandler) { c.storageBatchSize = n }
}

// WithClock overrides the wall-clock source; tests use this to pin "now".
func WithClock(clock Clock) Option {
	return func(c *Chandler) { c.clock = clock }
}

// New builds a Chandler over store, indexing exchanges by Name().
func New(store storage.Store, exchanges []exchange.Exchange, opts ...Option) *Chandler {
	byName := make(map[string]exchange.Exchange, len(exchanges))
	for _, ex := range exchanges {
		byName[ex.Name()] = ex
	}
	c := &Chandler{
		store:            store,
		exchanges:        byName,
		storageBatchSize: 1000,
		clock:            systemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCandles drains StreamCandles into a slice; used by the solver and
// backtest runs that want the whole range at once rather than a live feed.
func (c *Chandler) ListCandles(
	ctx context.Context, exchangeName, symbol string, interval core.Interval, start, end core.Timestamp,
	closed, fillMissingWithLast bool,
) ([]core.Candle, error) {
	stream, err := c.StreamCandles(ctx, exchangeName, symbol, interval, start, end, closed, fillMissingWithLast)
	if err != nil {
		return nil, err
	}
	var out []core.Candle
	for ev := range stream {
		if ev.Err != nil {
			return nil, ev.Err
		}
		out = append(out, ev.Candle)
	}
	return out, nil
}

type labeledSpan struct {
	span   core.Span
	exists bool
}

// StreamCandles streams candles for [start,end): known spans come straight
// from storage, missing spans are fetched from the exchange and persisted
// as they arrive. If closed is false, the venue's still-open tail candle is
// included. If fillMissingWithLast, a gap of 2+ intervals between
// consecutive closed candles is padded with repeats of the last known
// candle instead of simply being warned about.
func (c *Chandler) StreamCandles(
	ctx context.Context, exchangeName, symbol string, interval core.Interval, start, end core.Timestamp,
	closed, fillMissingWithLast bool,
) (<-chan CandleEvent, error) {
	shard, key := exchangeName, fmt.Sprintf("%s:%d", symbol, interval)

	existing, err := c.store.StreamSpans(ctx, shard, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("chandler: stream spans: %w", err)
	}
	merged := storage.MergeSpans(existing)
	missing := storage.MissingSpans(merged, start, end)

	spans := make([]labeledSpan, 0, len(merged)+len(missing))
	for _, s := range merged {
		spans = append(spans, labeledSpan{span: s, exists: true})
	}
	for _, s := range missing {
		spans = append(spans, labeledSpan{span: s, exists: false})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].span.Start < spans[j].span.Start })

	out := make(chan CandleEvent)
	go c.runStream(ctx, out, shard, key, exchangeName, symbol, interval, start, end, closed, fillMissingWithLast, spans)
	return out, nil
}

func (c *Chandler) runStream(
	ctx context.Context, out chan<- CandleEvent,
	shard, key, exchangeName, symbol string, interval core.Interval, start, end core.Timestamp,
	closed, fillMissingWithLast bool, spans []labeledSpan,
) {
	defer close(out)

	var lastClosed *core.Candle
	for _, ls := range spans {
		var in <-chan CandleEvent
		if ls.exists {
			in = c.readStoredSpan(ctx, shard, key, ls.span)
		} else {
			in = c.fetchAndStoreSpan(ctx, exchangeName, symbol, interval, ls.span)
		}

		for ev := range in {
			if ev.Err != nil {
				select {
				case out <- ev:
				case <-ctx.Done():
				}
				return
			}
			candle := ev.Candle

			if lastClosed == nil && candle.Closed {
				numMissed := (candle.Time - start) / interval
				if numMissed > 0 {
					observability.LogEvent(ctx, "warn", "chandler_missed_from_start", map[string]any{
						"exchange": exchangeName, "symbol": symbol, "interval": interval,
						"missed": numMissed, "start": start,
					})
				}
			}

			var timeDiff core.Timestamp
			if lastClosed != nil {
				timeDiff = candle.Time - lastClosed.Time
			}
			if timeDiff >= interval*2 {
				numMissed := timeDiff/interval - 1
				observability.LogEvent(ctx, "warn", "chandler_missed_gap", map[string]any{
					"exchange": exchangeName, "symbol": symbol, "interval": interval,
					"missed": numMissed, "last_closed_time": lastClosed.Time, "current_time": candle.Time,
				})
				if fillMissingWithLast {
					for i := core.Timestamp(1); i <= numMissed; i++ {
						fill := *lastClosed
						fill.Time = lastClosed.Time + i*interval
						select {
						case out <- CandleEvent{Candle: fill}:
						case <-ctx.Done():
							return
						}
					}
				}
			}

			if !closed || candle.Closed {
				select {
				case out <- CandleEvent{Candle: candle}:
				case <-ctx.Done():
					return
				}
			}
			if candle.Closed {
				cp := candle
				lastClosed = &cp
			}
		}
	}

	if lastClosed == nil {
		observability.LogEvent(ctx, "warn", "chandler_missed_all", map[string]any{
			"exchange": exchangeName, "symbol": symbol, "interval": interval, "start": start, "end": end,
		})
		return
	}
	timeDiff := end - lastClosed.Time
	if timeDiff >= interval*2 {
		numMissed := timeDiff/interval - 1
		observability.LogEvent(ctx, "warn", "chandler_missed_from_end", map[string]any{
			"exchange": exchangeName, "symbol": symbol, "interval": interval, "missed": numMissed, "end": end,
		})
	}
}

func (c *Chandler) readStoredSpan(ctx context.Context, shard, key string, span core.Span) <-chan CandleEvent {
	out := make(chan CandleEvent)
	go func() {
		defer close(out)
		candles, err := c.store.StreamCandles(ctx, shard, key, span.Start, span.End)
		if err != nil {
			select {
			case out <- CandleEvent{Err: fmt.Errorf("chandler: read stored span: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
		for _, candle := range candles {
			select {
			case out <- CandleEvent{Candle: candle}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
