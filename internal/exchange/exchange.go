// Package exchange defines the capability-flagged façade Chandler, Trades,
// Informant and the Basic Trader use to reach a single venue, plus the
// shared HTTP-call scaffolding (circuit breaker + rate limiter) that a
// concrete venue adapter embeds. Concrete adapters (Binance, Coinbase, ...)
// are out of scope here; only the interface and its supporting plumbing are
// specified.
package exchange

import (
	"context"
	"time"

	"jax-research-platform/internal/core"
)

// Capabilities flags which optional operations a venue supports. Chandler,
// Trades and the Basic Trader check these before calling the corresponding
// method.
type Capabilities struct {
	CanStreamHistoricalCandles bool
	CanStreamCandles           bool
	CanStreamHistoricalTrades  bool
	CanStreamDepthSnapshot     bool
	CanStreamDepth             bool
	CanMarginTrade             bool
	CanListOpenOrders          bool
	CanStreamBalances          bool
	CanStreamOrders            bool
}

// CandleStream yields closed (and, for live streams, one repeating open)
// candles until ctx is cancelled or the stream ends.
type CandleStream interface {
	// Next blocks until the next candle is available, ctx is done, or the
	// stream is exhausted (err == io.EOF).
	Next(ctx context.Context) (core.Candle, error)
	Close() error
}

// TradeStream yields historical trades in time order.
type TradeStream interface {
	Next(ctx context.Context) (core.Trade, error)
	Close() error
}

// DepthStream yields depth snapshots/updates.
type DepthStream interface {
	Next(ctx context.Context) (core.Depth, error)
	Close() error
}

// OrderUpdateStream yields order state transitions in exchange emission
// order; FILLED is treated as terminal by the Basic Trader.
type OrderUpdateStream interface {
	Next(ctx context.Context) (OrderUpdate, error)
	Close() error
}

// OrderStatus mirrors the lifecycle states an exchange reports for an order.
type OrderStatus int

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

// OrderUpdate is a single order-state transition delivered on an
// OrderUpdateStream.
type OrderUpdate struct {
	OrderID string
	Symbol  string
	Status  OrderStatus
	Fill    *core.Fill
}

// Side is the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// OrderType distinguishes market vs limit execution.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
)

// OrderRequest is a single order placement.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Size        interface{ String() string } // decimal.Decimal; avoids import cycle in doc comments
	Price       interface{ String() string }
	ClientOrderID string
}

// Exchange is a uniform façade over one venue's market and account data.
// Capability-gated methods return ErrUnsupported when the underlying venue
// cannot perform them; callers must check Capabilities first for streaming
// operations, which return a nil stream plus ErrUnsupported instead.
type Exchange interface {
	Name() string
	Capabilities() Capabilities

	ListCandleIntervals(ctx context.Context) ([]core.Interval, error)

	// StreamHistoricalCandles returns closed candles in [start,end). It must
	// not yield candles outside that range or with misaligned time, and may
	// yield fewer than requested.
	StreamHistoricalCandles(ctx context.Context, symbol string, interval core.Interval, start, end core.Timestamp) (CandleStream, error)

	// ConnectStreamCandles opens a live candle stream, including a
	// repeating open candle until it closes.
	ConnectStreamCandles(ctx context.Context, symbol string, interval core.Interval) (CandleStream, error)

	GetDepth(ctx context.Context, symbol string) (core.DepthSnapshot, error)
	ConnectStreamDepth(ctx context.Context, symbol string) (DepthStream, error)

	StreamHistoricalTrades(ctx context.Context, symbol string, start, end core.Timestamp) (TradeStream, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderUpdate, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ListOrders(ctx context.Context, symbol string) ([]OrderUpdate, error)

	MapBalances(ctx context.Context) (map[string]core.Fill, error)
	ConnectStreamBalances(ctx context.Context) (<-chan map[string]core.Fill, error)
	ConnectStreamOrders(ctx context.Context) (OrderUpdateStream, error)

	BorrowMargin(ctx context.Context, asset string, amount interface{ String() string }) error
	RepayMargin(ctx context.Context, asset string, amount interface{ String() string }) error
	TransferMargin(ctx context.Context, asset string, amount interface{ String() string }, toSpot bool) error
	GetMaxBorrowable(ctx context.Context, asset string) (interface{ String() string }, error)
}

// InactivityTimeout is a default inactivity duration for candle streams. No
// code in this module applies it: candle streams have no inactivity timeout
// and a stream with no new candle is not retried.
const InactivityTimeout = 2 * time.Minute
