// Package core holds the data model shared by every other package: candles,
// trades, spans, fees, filters, fills, positions and the trading summary
// they roll up into. All monetary and price fields use shopspring/decimal;
// floats only ever appear in solver fitness output and statistics.
package core

import "github.com/shopspring/decimal"

// Interval is a candle duration in milliseconds (e.g. one hour = 3_600_000).
type Interval = int64

// Timestamp is milliseconds since the Unix epoch.
type Timestamp = int64

// Candle is a single OHLCV bar aligned to an Interval boundary.
//
// Invariant: Time % interval == 0; High >= max(Open, Close) >=
// min(Open, Close) >= Low; Volume >= 0.
type Candle struct {
	Time   Timestamp       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Closed bool            `json:"closed"`
}

// GetTime satisfies the TimedItem constraint used by time-series storage.
func (c Candle) GetTime() Timestamp { return c.Time }

// Trade is a single executed trade on an exchange, ordered by Time per
// symbol.
type Trade struct {
	Time  Timestamp       `json:"time"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// GetTime satisfies the TimedItem constraint used by time-series storage.
func (t Trade) GetTime() Timestamp { return t.Time }

// Span is a half-open [Start, End) range marking "every closed candle (or
// trade) in this range has been fetched and stored".
type Span struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// Len returns the span's width.
func (s Span) Len() Timestamp { return s.End - s.Start }

// Empty reports whether the span contains no time at all.
func (s Span) Empty() bool { return s.End <= s.Start }

// Overlaps reports whether s and other share any instant.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Adjacent reports whether s and other touch with no gap (either order).
func (s Span) Adjacent(other Span) bool {
	return s.End == other.Start || other.End == s.Start
}

// Fees are maker/taker fractions charged by an exchange.
type Fees struct {
	Maker decimal.Decimal `json:"maker"`
	Taker decimal.Decimal `json:"taker"`
}

// Fill is a single match within an order.
type Fill struct {
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"size"`
	Quote    decimal.Decimal `json:"quote"`
	Fee      decimal.Decimal `json:"fee"`
	FeeAsset string          `json:"fee_asset"`
}

// TotalSize sums Size across fills.
func TotalSize(fills []Fill) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Size)
	}
	return total
}

// TotalQuote sums Quote across fills.
func TotalQuote(fills []Fill) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Quote)
	}
	return total
}

// TotalFee sums Fee across fills. Fees charged in a currency other than the
// fill's own base/quote (e.g. BNB) are not netted here; see the TODO on
// Position.Long in the upstream design about external-token fees.
func TotalFee(fills []Fill) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Fee)
	}
	return total
}

// Advice is a strategy's recommended action.
type Advice int

const (
	AdviceNone Advice = iota
	AdviceLong
	AdviceShort
	AdviceLiquidate
)

func (a Advice) String() string {
	switch a {
	case AdviceLong:
		return "long"
	case AdviceShort:
		return "short"
	case AdviceLiquidate:
		return "liquidate"
	default:
		return "none"
	}
}

// MissedCandlePolicy controls how the trader reacts to a gap of two or more
// intervals between consecutive candles.
type MissedCandlePolicy int

const (
	MissedCandleIgnore MissedCandlePolicy = iota
	MissedCandleRestart
	MissedCandleLast
)

func (p MissedCandlePolicy) String() string {
	switch p {
	case MissedCandleRestart:
		return "restart"
	case MissedCandleLast:
		return "last"
	default:
		return "ignore"
	}
}

// CloseReason records why a position was closed.
type CloseReason int

const (
	CloseReasonStrategy CloseReason = iota
	CloseReasonStopLoss
	CloseReasonTakeProfit
	CloseReasonCancelled
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonStopLoss:
		return "stop_loss"
	case CloseReasonTakeProfit:
		return "take_profit"
	case CloseReasonCancelled:
		return "cancelled"
	default:
		return "strategy"
	}
}

// TradingMode distinguishes how order execution is sourced.
type TradingMode int

const (
	TradingModeBacktest TradingMode = iota
	TradingModePaper
	TradingModeLive
)

func (m TradingMode) String() string {
	switch m {
	case TradingModePaper:
		return "paper"
	case TradingModeLive:
		return "live"
	default:
		return "backtest"
	}
}

// Depth is either a full order book snapshot or an incremental update.
// Bids/asks are sorted (price, size) pairs; a size of zero means delete the
// level.
type Depth struct {
	Snapshot *DepthSnapshot
	Update   *DepthUpdate
}

type DepthLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type DepthSnapshot struct {
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
	LastID int64        `json:"last_id"`
}

type DepthUpdate struct {
	Bids    []DepthLevel `json:"bids"`
	Asks    []DepthLevel `json:"asks"`
	FirstID int64        `json:"first_id"`
	LastID  int64        `json:"last_id"`
}

// UnpackSymbol splits a "base-quote" symbol (e.g. "eth-btc") into its base
// and quote assets.
func UnpackSymbol(symbol string) (base, quote string) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '-' {
			return symbol[:i], symbol[i+1:]
		}
	}
	return symbol, ""
}
