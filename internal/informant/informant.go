// Package informant periodically refreshes and caches per-exchange market
// metadata (fees, filters, symbols, candle intervals, borrow info) so
// Chandler, the Broker and the Basic Trader never block on a network call
// for data that only changes a few times a day.
package informant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
	"jax-research-platform/internal/storage"
	"jax-research-platform/libs/observability"
)

// RefreshPeriod is how often ExchangeInfo is re-fetched from each venue.
const RefreshPeriod = 6 * time.Hour

// CacheFreshness is how long a Storage-persisted ExchangeInfo snapshot is
// trusted before a restart must wait on a live fetch instead of serving it.
const CacheFreshness = 24 * time.Hour

// exchangeInfoKey is the Storage object-store key an exchange's ExchangeInfo
// is persisted under, one shard per exchange.
const exchangeInfoKey = "map_ExchangeInfo"

// storedExchangeInfo pairs a cached snapshot with the time it was fetched,
// so a restart can tell whether Storage's copy is still within
// CacheFreshness or needs a live refresh first.
type storedExchangeInfo struct {
	Info      ExchangeInfo
	UpdatedAt time.Time
}

// ExchangeInfo is the last-known snapshot of one exchange's metadata.
type ExchangeInfo struct {
	Fees             map[string]core.Fees // symbol, or "__all__" for a flat fee
	Filters          map[string]core.Filters
	CandleIntervals  []core.Interval
	Symbols          []string
	Tickers          map[string]decimal.Decimal
	BorrowInfo       map[string]BorrowInfo
	MarginMultiplier int
}

// BorrowInfo describes margin-borrow terms for one asset on one exchange.
type BorrowInfo struct {
	DailyInterestRate decimal.Decimal
	LimitAsset        decimal.Decimal
}

// Fetcher is how Informant pulls a fresh ExchangeInfo from a venue; real
// deployments wire an exchange.Exchange-backed implementation, tests wire a
// stub.
type Fetcher interface {
	FetchExchangeInfo(ctx context.Context, ex exchange.Exchange) (ExchangeInfo, error)
}

// Informant holds the last-known ExchangeInfo per exchange, refreshed on a
// background timer, and blocks callers on an initial sync per exchange.
type Informant struct {
	exchanges map[string]exchange.Exchange
	fetcher   Fetcher
	period    time.Duration
	store     storage.Store

	mu   sync.RWMutex
	data map[string]ExchangeInfo

	ready map[string]chan struct{}
}

// Option configures an Informant built by New.
type Option func(*Informant)

// WithStore persists every synced ExchangeInfo through store's object store
// (per spec, keyed "map_ExchangeInfo" per exchange shard, with an
// updated_at timestamp), and lets Ready() return immediately off a
// still-fresh persisted copy on restart instead of blocking on a live fetch.
func WithStore(store storage.Store) Option {
	return func(i *Informant) { i.store = store }
}

// New builds an Informant over exchanges, indexed by Name(), using fetcher
// to pull metadata. Call Run in a goroutine to start the refresh loop, and
// Ready to block until the first sync for an exchange completes.
func New(exchanges []exchange.Exchange, fetcher Fetcher, opts ...Option) *Informant {
	byName := make(map[string]exchange.Exchange, len(exchanges))
	ready := make(map[string]chan struct{}, len(exchanges))
	for _, ex := range exchanges {
		byName[ex.Name()] = ex
		ready[ex.Name()] = make(chan struct{})
	}
	i := &Informant{
		exchanges: byName,
		fetcher:   fetcher,
		period:    RefreshPeriod,
		data:      make(map[string]ExchangeInfo),
		ready:     ready,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ready blocks until the named exchange has completed its first metadata
// sync, or ctx is cancelled.
func (i *Informant) Ready(ctx context.Context, exchangeName string) error {
	ch, ok := i.ready[exchangeName]
	if !ok {
		return fmt.Errorf("informant: unknown exchange %q", exchangeName)
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the periodic refresh loop; it blocks until ctx is cancelled.
// Call it in a goroutine at startup, one per Informant instance.
func (i *Informant) Run(ctx context.Context) {
	i.syncAll(ctx)

	ticker := time.NewTicker(i.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.syncAll(ctx)
		}
	}
}

func (i *Informant) syncAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, ex := range i.exchanges {
		wg.Add(1)
		go func(name string, ex exchange.Exchange) {
			defer wg.Done()
			i.syncOne(ctx, name, ex)
		}(name, ex)
	}
	wg.Wait()
}

func (i *Informant) syncOne(ctx context.Context, name string, ex exchange.Exchange) {
	i.mu.RLock()
	_, hadData := i.data[name]
	i.mu.RUnlock()

	if !hadData && i.store != nil {
		if cached, ok := i.loadCached(ctx, name); ok {
			i.mu.Lock()
			_, stillNoData := i.data[name]
			if stillNoData {
				i.data[name] = cached
			}
			i.mu.Unlock()
			if stillNoData {
				close(i.ready[name])
			}
		}
	}

	info, err := i.fetcher.FetchExchangeInfo(ctx, ex)
	if err != nil {
		observability.LogEvent(ctx, "error", "informant_sync_failed", map[string]any{
			"exchange": name, "error": err.Error(),
		})
		return
	}

	i.mu.Lock()
	_, hadData = i.data[name]
	i.data[name] = info
	i.mu.Unlock()

	if !hadData {
		close(i.ready[name])
	}

	if i.store != nil {
		i.persist(ctx, name, info)
	}
}

// loadCached reads exchange's last-persisted ExchangeInfo from Storage. It
// reports ok=false if nothing is stored, the entry is older than
// CacheFreshness, or the read fails.
func (i *Informant) loadCached(ctx context.Context, name string) (ExchangeInfo, bool) {
	var stored storedExchangeInfo
	if err := i.store.GetObject(ctx, name, exchangeInfoKey, &stored); err != nil {
		return ExchangeInfo{}, false
	}
	if time.Since(stored.UpdatedAt) > CacheFreshness {
		return ExchangeInfo{}, false
	}
	return stored.Info, true
}

// persist writes info to Storage's object store so a later restart can
// serve it without waiting on a live fetch, as long as it's still fresh.
func (i *Informant) persist(ctx context.Context, name string, info ExchangeInfo) {
	stored := storedExchangeInfo{Info: info, UpdatedAt: time.Now()}
	if err := i.store.SetObject(ctx, name, exchangeInfoKey, stored); err != nil {
		observability.LogEvent(ctx, "error", "informant_cache_persist_failed", map[string]any{
			"exchange": name, "error": err.Error(),
		})
	}
}

func (i *Informant) get(exchangeName string) (ExchangeInfo, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	info, ok := i.data[exchangeName]
	if !ok {
		return ExchangeInfo{}, fmt.Errorf("informant: no data synced yet for exchange %q", exchangeName)
	}
	return info, nil
}

// GetFeesFilters returns the fee schedule and filter set for symbol on
// exchangeName.
func (i *Informant) GetFeesFilters(exchangeName, symbol string) (core.Fees, core.Filters, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return core.Fees{}, core.Filters{}, err
	}
	fees, ok := info.Fees[symbol]
	if !ok {
		fees, ok = info.Fees["__all__"]
	}
	if !ok {
		return core.Fees{}, core.Filters{}, fmt.Errorf("informant: exchange %q has no fees for %q", exchangeName, symbol)
	}
	filters, ok := info.Filters[symbol]
	if !ok {
		return core.Fees{}, core.Filters{}, fmt.Errorf("informant: exchange %q has no filters for %q", exchangeName, symbol)
	}
	return fees, filters, nil
}

// ListSymbols returns every symbol traded on exchangeName.
func (i *Informant) ListSymbols(exchangeName string) ([]string, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return nil, err
	}
	return info.Symbols, nil
}

// ListCandleIntervals returns the candle intervals exchangeName supports.
func (i *Informant) ListCandleIntervals(exchangeName string) ([]core.Interval, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return nil, err
	}
	return info.CandleIntervals, nil
}

// MapTickers returns the last-known ticker price per symbol.
func (i *Informant) MapTickers(exchangeName string) (map[string]decimal.Decimal, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return nil, err
	}
	return info.Tickers, nil
}

// GetBorrowInfo returns margin-borrow terms for asset on exchangeName.
func (i *Informant) GetBorrowInfo(exchangeName, asset string) (BorrowInfo, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return BorrowInfo{}, err
	}
	bi, ok := info.BorrowInfo[asset]
	if !ok {
		return BorrowInfo{}, fmt.Errorf("informant: exchange %q has no borrow info for %q", exchangeName, asset)
	}
	return bi, nil
}

// GetMarginMultiplier returns the max leverage exchangeName allows.
func (i *Informant) GetMarginMultiplier(exchangeName string) (int, error) {
	info, err := i.get(exchangeName)
	if err != nil {
		return 0, err
	}
	return info.MarginMultiplier, nil
}
