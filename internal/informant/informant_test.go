package informant

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/storage"
)

type stubFetcher struct {
	info ExchangeInfo
}

func (f *stubFetcher) FetchExchangeInfo(ctx context.Context, ex exchange.Exchange) (ExchangeInfo, error) {
	return f.info, nil
}

type stubExchange struct{ exchange.Exchange }

func (s stubExchange) Name() string { return "binance" }

func TestInformant_SyncThenReadyUnblocks(t *testing.T) {
	fetcher := &stubFetcher{info: ExchangeInfo{
		Fees:            map[string]core.Fees{"__all__": {Maker: decimal.NewFromFloat(0.001), Taker: decimal.NewFromFloat(0.001)}},
		Filters:         map[string]core.Filters{"eth-btc": {}},
		CandleIntervals: []core.Interval{60_000, 3_600_000},
		Symbols:         []string{"eth-btc"},
	}}
	inf := New([]exchange.Exchange{stubExchange{}}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	go inf.Run(ctx)
	defer cancel()

	require.NoError(t, inf.Ready(context.Background(), "binance"))

	fees, filters, err := inf.GetFeesFilters("binance", "eth-btc")
	require.NoError(t, err)
	require.True(t, fees.Maker.Equal(decimal.NewFromFloat(0.001)))
	require.NotNil(t, filters)

	symbols, err := inf.ListSymbols("binance")
	require.NoError(t, err)
	require.Equal(t, []string{"eth-btc"}, symbols)

	intervals, err := inf.ListCandleIntervals("binance")
	require.NoError(t, err)
	require.Contains(t, intervals, core.Interval(3_600_000))
}

func TestInformant_SyncPersistsToStore(t *testing.T) {
	fetcher := &stubFetcher{info: ExchangeInfo{
		Fees:    map[string]core.Fees{"__all__": {Taker: decimal.NewFromFloat(0.002)}},
		Symbols: []string{"eth-btc"},
	}}
	store := storage.NewMemory()
	inf := New([]exchange.Exchange{stubExchange{}}, fetcher, WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inf.Run(ctx)
	require.NoError(t, inf.Ready(context.Background(), "binance"))

	var stored storedExchangeInfo
	require.NoError(t, store.GetObject(context.Background(), "binance", exchangeInfoKey, &stored))
	require.Equal(t, []string{"eth-btc"}, stored.Info.Symbols)
	require.False(t, stored.UpdatedAt.IsZero())
}

func TestInformant_LoadCached_RejectsStaleEntry(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SetObject(context.Background(), "binance", exchangeInfoKey, storedExchangeInfo{
		Info:      ExchangeInfo{Symbols: []string{"eth-btc"}},
		UpdatedAt: time.Now().Add(-25 * time.Hour),
	}))
	inf := New(nil, &stubFetcher{}, WithStore(store))

	_, ok := inf.loadCached(context.Background(), "binance")
	require.False(t, ok, "an entry older than CacheFreshness must not be served")
}

func TestInformant_LoadCached_ServesFreshEntry(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SetObject(context.Background(), "binance", exchangeInfoKey, storedExchangeInfo{
		Info:      ExchangeInfo{Symbols: []string{"eth-btc"}},
		UpdatedAt: time.Now().Add(-1 * time.Hour),
	}))
	inf := New(nil, &stubFetcher{}, WithStore(store))

	cached, ok := inf.loadCached(context.Background(), "binance")
	require.True(t, ok)
	require.Equal(t, []string{"eth-btc"}, cached.Symbols)
}

func TestInformant_Ready_UnknownExchange(t *testing.T) {
	inf := New(nil, &stubFetcher{})
	err := inf.Ready(context.Background(), "missing")
	require.Error(t, err)
}

func TestInformant_Ready_TimesOutWithoutSync(t *testing.T) {
	inf := New([]exchange.Exchange{stubExchange{}}, &stubFetcher{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := inf.Ready(ctx, "binance")
	require.Error(t, err)
}
