package chandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
)

// maxAttempts/resetWindow mirror the upstream stop_after_attempt_with_reset
// policy already used by internal/exchange.RetryWithResetWindow: give up
// after 3 consecutive failures, but a failure more than resetWindow after
// the previous one doesn't count against the budget.
const (
	maxAttempts = 3
	resetWindow = 300 * time.Second
)

// fetchAndStoreSpan fetches [span.Start, span.End) from exchangeName,
// flushing a batch of storageBatchSize closed candles (and the span they
// cover) to storage as it goes, and forwards every candle it sees
// (including the still-open tail) to the returned channel. On a retriable
// failure it flushes whatever batch it has accumulated, advances its start
// point past it, and retries from there; a permanent failure or exhausted
// retry budget is reported as a terminal CandleEvent.Err.
func (c *Chandler) fetchAndStoreSpan(ctx context.Context, exchangeName, symbol string, interval core.Interval, span core.Span) <-chan CandleEvent {
	out := make(chan CandleEvent)
	go func() {
		defer close(out)

		shard, key := exchangeName, fmt.Sprintf("%s:%d", symbol, interval)
		start := span.Start
		attempts := 0
		var lastAttempt time.Time

		for {
			now := time.Now()
			if !lastAttempt.IsZero() && now.Sub(lastAttempt) > resetWindow {
				attempts = 0
			}
			lastAttempt = now

			newStart, err := c.runOneAttempt(ctx, out, shard, key, exchangeName, symbol, interval, start, span.End)
			start = newStart
			if err == nil {
				return
			}

			var exErr *exchange.Error
			retriable := errors.As(err, &exErr) && exErr.Retriable
			attempts++
			if !retriable || attempts >= maxAttempts || start >= span.End {
				select {
				case out <- CandleEvent{Err: fmt.Errorf("chandler: fetch %s/%s [%d,%d): %w", shard, key, span.Start, span.End, err)}:
				case <-ctx.Done():
				}
				return
			}

			backoff := time.Duration(attempts) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}()
	return out
}

// runOneAttempt streams candles in [start,end) from the venue, flushing
// closed-candle batches to storage, and returns the point it reached (so a
// retry resumes from there) plus any error encountered.
func (c *Chandler) runOneAttempt(
	ctx context.Context, out chan<- CandleEvent, shard, key, exchangeName, symbol string, interval, start, end core.Timestamp,
) (core.Timestamp, error) {
	current := core.FloorMultiple(c.clock(), interval)

	var batch []core.Candle
	batchStart := start

	flush := func(batchEnd core.Timestamp) error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.store.StoreCandlesAndSpan(ctx, shard, key, batch, core.Span{Start: batchStart, End: batchEnd}); err != nil {
			return fmt.Errorf("chandler: store batch: %w", err)
		}
		batch = nil
		batchStart = batchEnd
		return nil
	}

	venueStream := c.streamVenueCandles(ctx, exchangeName, symbol, interval, start, end, current)
	for ev := range venueStream {
		if ev.Err != nil {
			if flushErr := flush(lastBatchEnd(batch, interval, batchStart)); flushErr != nil {
				return batchStart, flushErr
			}
			return batchStart, ev.Err
		}

		candle := ev.Candle
		if candle.Closed {
			batch = append(batch, candle)
			if len(batch) == c.storageBatchSize {
				batchEnd := batch[len(batch)-1].Time + interval
				if err := flush(batchEnd); err != nil {
					return batchStart, err
				}
			}
		}

		select {
		case out <- CandleEvent{Candle: candle}:
		case <-ctx.Done():
			_ = flush(lastBatchEnd(batch, interval, batchStart))
			return batchStart, ctx.Err()
		}
	}

	current = core.FloorMultiple(c.clock(), interval)
	batchEnd := end
	if current < batchEnd {
		batchEnd = current
	}
	if batchEnd < batchStart {
		batchEnd = batchStart
	}
	if err := flush(batchEnd); err != nil {
		return batchStart, err
	}
	return end, nil
}

func lastBatchEnd(batch []core.Candle, interval, fallback core.Timestamp) core.Timestamp {
	if len(batch) == 0 {
		return fallback
	}
	return batch[len(batch)-1].Time + interval
}

// streamVenueCandles mirrors the upstream historical/live split: data
// before "current" comes from StreamHistoricalCandles (or, failing that,
// trade-synthesized candles); data from "current" onward comes from a live
// stream, stopping once it reaches end.
func (c *Chandler) streamVenueCandles(
	ctx context.Context, exchangeName, symbol string, interval, start, end, current core.Timestamp,
) <-chan CandleEvent {
	out := make(chan CandleEvent)
	go func() {
		defer close(out)

		ex, ok := c.exchanges[exchangeName]
		if !ok {
			send(ctx, out, CandleEvent{Err: fmt.Errorf("chandler: unknown exchange %q", exchangeName)})
			return
		}
		caps := ex.Capabilities()
		intervalSupported := true
		if c.informant != nil {
			intervals, err := c.informant.ListCandleIntervals(exchangeName)
			if err == nil {
				intervalSupported = containsInterval(intervals, interval)
			}
		}

		historicalEnd := end
		if current < historicalEnd {
			historicalEnd = current
		}

		if start < current {
			if caps.CanStreamHistoricalCandles && intervalSupported {
				if !c.forwardHistorical(ctx, out, ex, symbol, interval, start, historicalEnd) {
					return
				}
			} else {
				if !c.forwardConstructed(ctx, out, exchangeName, symbol, interval, start, historicalEnd) {
					return
				}
			}
		}

		if end <= current {
			return
		}

		if caps.CanStreamCandles && intervalSupported {
			c.forwardLive(ctx, out, ex, symbol, interval, end)
		} else {
			c.forwardConstructedLive(ctx, out, exchangeName, symbol, interval, current, end)
		}
	}()
	return out
}

func (c *Chandler) forwardHistorical(ctx context.Context, out chan<- CandleEvent, ex exchange.Exchange, symbol string, interval, start, end core.Timestamp) bool {
	stream, err := ex.StreamHistoricalCandles(ctx, symbol, interval, start, end)
	if err != nil {
		return send(ctx, out, CandleEvent{Err: err})
	}
	defer stream.Close()
	for {
		candle, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true
			}
			return send(ctx, out, CandleEvent{Err: err})
		}
		if !send(ctx, out, CandleEvent{Candle: candle}) {
			return false
		}
	}
}

func (c *Chandler) forwardLive(ctx context.Context, out chan<- CandleEvent, ex exchange.Exchange, symbol string, interval, end core.Timestamp) {
	stream, err := ex.ConnectStreamCandles(ctx, symbol, interval)
	if err != nil {
		send(ctx, out, CandleEvent{Err: err})
		return
	}
	defer stream.Close()
	for {
		candle, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			send(ctx, out, CandleEvent{Err: err})
			return
		}
		if candle.Time >= end {
			return
		}
		if !send(ctx, out, CandleEvent{Candle: candle}) {
			return
		}
		if candle.Closed && candle.Time == end-interval {
			return
		}
	}
}

func (c *Chandler) forwardConstructed(ctx context.Context, out chan<- CandleEvent, exchangeName, symbol string, interval, start, end core.Timestamp) bool {
	constructed, err := c.constructCandlesFromTrades(ctx, exchangeName, symbol, interval, start, end)
	if err != nil {
		return send(ctx, out, CandleEvent{Err: err})
	}
	for _, candle := range constructed {
		if !send(ctx, out, CandleEvent{Candle: candle}) {
			return false
		}
	}
	return true
}

func (c *Chandler) forwardConstructedLive(ctx context.Context, out chan<- CandleEvent, exchangeName, symbol string, interval, start, end core.Timestamp) {
	// No live trade stream is wired; candles are constructed once from the
	// historical trades in [start,end), the same fallback shape as the
	// historical path, and trades arriving after that call are not polled for.
	c.forwardConstructed(ctx, out, exchangeName, symbol, interval, start, end)
}

func containsInterval(intervals []core.Interval, interval core.Interval) bool {
	for _, v := range intervals {
		if v == interval {
			return true
		}
	}
	return false
}

func send(ctx context.Context, out chan<- CandleEvent, ev CandleEvent) bool {
	select {
	case out <- ev:
		return ev.Err == nil
	case <-ctx.Done():
		return false
	}
}
