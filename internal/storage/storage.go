// Package storage implements the sharded key/value and time-series-with-spans
// storage contract that Chandler, Trades and Informant build on. An in-memory
// driver backs tests; a Postgres driver (github.com/jackc/pgx/v5) backs
// production, optionally fronted by a Redis read-through cache.
package storage

import (
	"context"
	"fmt"

	"jax-research-platform/internal/core"
)

// TimedItem is any value that can be stored in a time series: it knows its
// own timestamp.
type TimedItem interface {
	GetTime() core.Timestamp
}

// Store is the full storage contract: a sharded object store plus a
// time-series store keyed by (shard, key).
type Store interface {
	ObjectStore
	TimeSeriesStore
}

// ObjectStore gets/sets a single named value per shard.
type ObjectStore interface {
	// GetObject loads the value stored at (shard, key) into dst, a pointer.
	// Returns ErrNotFound if absent.
	GetObject(ctx context.Context, shard, key string, dst any) error
	// SetObject stores value at (shard, key), overwriting any prior value.
	SetObject(ctx context.Context, shard, key string, value any) error
}

// TimeSeriesStore exposes per-(shard,key) storage of time-ordered items with
// span bookkeeping: every write atomically stores both the items and the
// span of time they cover, and spans can later be queried and merged.
type TimeSeriesStore interface {
	// StreamSpans returns the stored spans intersecting [start, end), sorted
	// and merged where adjacent.
	StreamSpans(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Span, error)

	// StreamCandles returns stored candles in [start, end) ordered by time.
	StreamCandles(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Candle, error)

	// StreamTrades returns stored trades in [start, end) ordered by time.
	StreamTrades(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Trade, error)

	// StoreCandlesAndSpan atomically appends candles and marks span [start,end)
	// as fetched. Fails with core.ErrConsistency if any candle's time falls
	// outside [start,end), candles are out of order, or span overlaps an
	// existing span for this (shard,key).
	StoreCandlesAndSpan(ctx context.Context, shard, key string, candles []core.Candle, span core.Span) error

	// StoreTradesAndSpan is the Trade analog of StoreCandlesAndSpan.
	StoreTradesAndSpan(ctx context.Context, shard, key string, trades []core.Trade, span core.Span) error
}

// ErrNotFound is returned by ObjectStore.GetObject when no value is stored
// at the given (shard, key).
var ErrNotFound = fmt.Errorf("storage: object not found")

// MergeSpans sorts spans by Start and merges any that are adjacent or
// overlapping, matching Chandler's span-merge step.
func MergeSpans(spans []core.Span) []core.Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]core.Span(nil), spans...)
	sortSpans(sorted)

	merged := []core.Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// MissingSpans computes the complement of spans (assumed merged, sorted,
// non-overlapping) within [start, end).
func MissingSpans(spans []core.Span, start, end core.Timestamp) []core.Span {
	var missing []core.Span
	cursor := start
	for _, s := range spans {
		if s.End <= cursor {
			continue
		}
		if s.Start >= end {
			break
		}
		if s.Start > cursor {
			missing = append(missing, core.Span{Start: cursor, End: s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < end {
		missing = append(missing, core.Span{Start: cursor, End: end})
	}
	return missing
}

func sortSpans(spans []core.Span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].Start > spans[j].Start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
}
