package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"jax-research-platform/internal/core"
)

// Memory is an in-process Store used by tests and by cmd/trader in
// dry-run/backtest mode when no Postgres DSN is configured.
type Memory struct {
	mu sync.Mutex

	objects map[string][]byte

	candleSpans   map[string][]core.Span
	candleSeries  map[string][]core.Candle
	tradeSpans    map[string][]core.Span
	tradeSeries   map[string][]core.Trade
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:      make(map[string][]byte),
		candleSpans:  make(map[string][]core.Span),
		candleSeries: make(map[string][]core.Candle),
		tradeSpans:   make(map[string][]core.Span),
		tradeSeries:  make(map[string][]core.Trade),
	}
}

func shardKey(shard, key string) string { return shard + "\x00" + key }

func (m *Memory) GetObject(ctx context.Context, shard, key string, dst any) error {
	m.mu.Lock()
	raw, ok := m.objects[shardKey(shard, key)]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (m *Memory) SetObject(ctx context.Context, shard, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshal object %s/%s: %w", shard, key, err)
	}
	m.mu.Lock()
	m.objects[shardKey(shard, key)] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) StreamSpans(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return intersectSpans(m.candleSpans[shardKey(shard, key)], start, end), nil
}

func (m *Memory) StreamCandles(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.candleSeries[shardKey(shard, key)]
	i := sort.Search(len(all), func(i int) bool { return all[i].Time >= start })
	j := sort.Search(len(all), func(i int) bool { return all[i].Time >= end })
	out := make([]core.Candle, j-i)
	copy(out, all[i:j])
	return out, nil
}

func (m *Memory) StreamTrades(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.tradeSeries[shardKey(shard, key)]
	i := sort.Search(len(all), func(i int) bool { return all[i].Time >= start })
	j := sort.Search(len(all), func(i int) bool { return all[i].Time >= end })
	out := make([]core.Trade, j-i)
	copy(out, all[i:j])
	return out, nil
}

func (m *Memory) StoreCandlesAndSpan(ctx context.Context, shard, key string, candles []core.Candle, span core.Span) error {
	for _, c := range candles {
		if c.Time < span.Start || c.Time >= span.End {
			return fmt.Errorf("%w: candle time %d outside span [%d,%d)", core.ErrConsistency, c.Time, span.Start, span.End)
		}
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			return fmt.Errorf("%w: candles out of order at index %d", core.ErrConsistency, i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sk := shardKey(shard, key)
	for _, existing := range m.candleSpans[sk] {
		if existing.Overlaps(span) {
			return fmt.Errorf("%w: span [%d,%d) overlaps existing [%d,%d)",
				core.ErrConsistency, span.Start, span.End, existing.Start, existing.End)
		}
	}

	m.candleSeries[sk] = append(m.candleSeries[sk], candles...)
	sort.Slice(m.candleSeries[sk], func(i, j int) bool { return m.candleSeries[sk][i].Time < m.candleSeries[sk][j].Time })
	m.candleSpans[sk] = MergeSpans(append(m.candleSpans[sk], span))
	return nil
}

func (m *Memory) StoreTradesAndSpan(ctx context.Context, shard, key string, trades []core.Trade, span core.Span) error {
	for _, t := range trades {
		if t.Time < span.Start || t.Time >= span.End {
			return fmt.Errorf("%w: trade time %d outside span [%d,%d)", core.ErrConsistency, t.Time, span.Start, span.End)
		}
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].Time < trades[i-1].Time {
			return fmt.Errorf("%w: trades out of order at index %d", core.ErrConsistency, i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sk := shardKey(shard, key)
	for _, existing := range m.tradeSpans[sk] {
		if existing.Overlaps(span) {
			return fmt.Errorf("%w: span [%d,%d) overlaps existing [%d,%d)",
				core.ErrConsistency, span.Start, span.End, existing.Start, existing.End)
		}
	}

	m.tradeSeries[sk] = append(m.tradeSeries[sk], trades...)
	sort.Slice(m.tradeSeries[sk], func(i, j int) bool { return m.tradeSeries[sk][i].Time < m.tradeSeries[sk][j].Time })
	m.tradeSpans[sk] = MergeSpans(append(m.tradeSpans[sk], span))
	return nil
}

func intersectSpans(spans []core.Span, start, end core.Timestamp) []core.Span {
	merged := MergeSpans(spans)
	var out []core.Span
	for _, s := range merged {
		lo, hi := s.Start, s.End
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if lo < hi {
			out = append(out, core.Span{Start: lo, End: hi})
		}
	}
	return out
}

var _ Store = (*Memory)(nil)
