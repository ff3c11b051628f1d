package trades

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/storage"
)

type fakeTradeStream struct {
	items []core.Trade
	i     int
}

func (s *fakeTradeStream) Next(ctx context.Context) (core.Trade, error) {
	if s.i >= len(s.items) {
		return core.Trade{}, io.EOF
	}
	tr := s.items[s.i]
	s.i++
	return tr, nil
}
func (s *fakeTradeStream) Close() error { return nil }

type fakeExchange struct {
	exchange.Exchange
	name  string
	caps  exchange.Capabilities
	items []core.Trade
	calls int
}

func (f *fakeExchange) Name() string                        { return f.name }
func (f *fakeExchange) Capabilities() exchange.Capabilities  { return f.caps }
func (f *fakeExchange) StreamHistoricalTrades(ctx context.Context, symbol string, start, end core.Timestamp) (exchange.TradeStream, error) {
	f.calls++
	var in []core.Trade
	for _, t := range f.items {
		if t.Time >= start && t.Time < end {
			in = append(in, t)
		}
	}
	return &fakeTradeStream{items: in}, nil
}

func TestStreamTrades_FetchesMissingAndCachesResult(t *testing.T) {
	store := storage.NewMemory()
	ex := &fakeExchange{
		name: "binance",
		caps: exchange.Capabilities{CanStreamHistoricalTrades: true},
		items: []core.Trade{
			{Time: 0, Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)},
			{Time: 5, Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(2)},
		},
	}
	tr := New(store, []exchange.Exchange{ex})

	got, err := tr.StreamTrades(context.Background(), "binance", "eth-btc", 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, ex.calls)

	got2, err := tr.StreamTrades(context.Background(), "binance", "eth-btc", 0, 10)
	require.NoError(t, err)
	require.Len(t, got2, 2)
	require.Equal(t, 1, ex.calls, "second call must be served entirely from storage")
}

func TestStreamTrades_UnsupportedCapability(t *testing.T) {
	store := storage.NewMemory()
	ex := &fakeExchange{name: "binance", caps: exchange.Capabilities{}}
	tr := New(store, []exchange.Exchange{ex})

	_, err := tr.StreamTrades(context.Background(), "binance", "eth-btc", 0, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, exchange.ErrUnsupported))
}

func TestStreamTrades_UnknownExchange(t *testing.T) {
	store := storage.NewMemory()
	tr := New(store, nil)

	_, err := tr.StreamTrades(context.Background(), "missing", "eth-btc", 0, 10)
	require.Error(t, err)
}
