package broker

import (
	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

// DayMS is one day in milliseconds, the margin-interest accrual unit.
const DayMS int64 = 24 * 60 * 60 * 1000

// Simulator computes the fills a backtest position open/close would have
// produced, given a symbol's fee schedule and filters. It never talks to a
// network; the Basic Trader uses it only in TradingModeBacktest.
type Simulator struct {
	fees    core.Fees
	filters core.Filters
}

// NewSimulator builds a Simulator for one symbol's fee schedule and filters.
func NewSimulator(fees core.Fees, filters core.Filters) *Simulator {
	return &Simulator{fees: fees, filters: filters}
}

// OpenLong buys size ~= quote/price of the base asset, net of the taker fee
// charged in the base asset.
func (s *Simulator) OpenLong(symbol string, time core.Timestamp, price, quote decimal.Decimal) core.OpenLong {
	baseAsset, _ := core.UnpackSymbol(symbol)
	size := s.filters.Size.RoundDown(quote.Div(price))
	fee := core.RoundHalfUp(size.Mul(s.fees.Taker), int32(s.filters.BasePrecision))
	fill := core.Fill{
		Price:    price,
		Size:     size,
		Quote:    price.Mul(size),
		Fee:      fee,
		FeeAsset: baseAsset,
	}
	return core.OpenLong{Symbol: symbol, Time: time, Fills: []core.Fill{fill}}
}

// CloseLong sells everything OpenLong actually received net of its entry
// fee, at price.
func (s *Simulator) CloseLong(
	position core.OpenLong, time core.Timestamp, price decimal.Decimal, reason core.CloseReason,
) core.Long {
	_, quoteAsset := core.UnpackSymbol(position.Symbol)
	size := position.BaseGain()
	quote := price.Mul(size)
	fee := core.RoundHalfUp(quote.Mul(s.fees.Taker), int32(s.filters.QuotePrecision))
	fill := core.Fill{
		Price:    price,
		Size:     size,
		Quote:    quote,
		Fee:      fee,
		FeeAsset: quoteAsset,
	}
	return position.Close(reason, time, []core.Fill{fill})
}

// OpenShort borrows borrowed ~= collateral*(marginMultiplier-1)/price of the
// base asset and sells it, retaining collateral in the quote asset.
func (s *Simulator) OpenShort(
	symbol string, time core.Timestamp, price, collateral decimal.Decimal, marginMultiplier int,
) core.OpenShort {
	_, quoteAsset := core.UnpackSymbol(symbol)
	leverage := decimal.NewFromInt(int64(marginMultiplier - 1))
	borrowed := s.filters.Size.RoundDown(collateral.Mul(leverage).Div(price))
	quote := price.Mul(borrowed)
	fee := core.RoundHalfUp(quote.Mul(s.fees.Taker), int32(s.filters.QuotePrecision))
	fill := core.Fill{
		Price:    price,
		Size:     borrowed,
		Quote:    quote,
		Fee:      fee,
		FeeAsset: quoteAsset,
	}
	return core.OpenShort{
		Symbol: symbol, Collateral: collateral, Borrowed: borrowed, Time: time,
		Fills: []core.Fill{fill},
	}
}

// CloseShort buys back position.Borrowed plus accrued interest at price.
// Interest accrues at borrowInfo's daily rate, rounded up to whole days,
// with a minimum of one day charged.
func (s *Simulator) CloseShort(
	position core.OpenShort, time core.Timestamp, price, dailyInterestRate decimal.Decimal, reason core.CloseReason,
) core.Short {
	days := core.CeilMultiple(time-position.Time, DayMS) / DayMS
	if days < 1 {
		days = 1
	}
	interest := position.Borrowed.Mul(dailyInterestRate).Mul(decimal.NewFromInt(days))

	size := position.Borrowed.Add(interest)
	quote := price.Mul(size)
	baseAsset, _ := core.UnpackSymbol(position.Symbol)
	fee := core.RoundHalfUp(size.Mul(s.fees.Taker), int32(s.filters.BasePrecision))
	fill := core.Fill{
		Price:    price,
		Size:     size,
		Quote:    quote,
		Fee:      fee,
		FeeAsset: baseAsset,
	}
	return position.Close(reason, interest, time, []core.Fill{fill})
}
