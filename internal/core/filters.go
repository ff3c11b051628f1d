package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price describes a symbol's valid price range and tick size.
// https://github.com/binance-exchange/binance-official-api-docs/blob/master/rest-api.md#filters
type Price struct {
	Min  decimal.Decimal
	Max  decimal.Decimal // zero means disabled
	Step decimal.Decimal // zero means disabled
}

// RoundDown quantizes price down to the nearest valid step, clamping to Max
// and returning zero if below Min.
func (p Price) RoundDown(price decimal.Decimal) decimal.Decimal {
	if price.LessThan(p.Min) {
		return decimal.Zero
	}
	if p.Max.IsPositive() {
		price = decimal.Min(price, p.Max)
	}
	if p.Step.IsPositive() {
		price = quantize(price, p.Step, roundDown)
	}
	return price
}

// Valid reports whether price satisfies min/max/step.
func (p Price) Valid(price decimal.Decimal) bool {
	if price.LessThan(p.Min) {
		return false
	}
	if p.Max.IsPositive() && price.GreaterThan(p.Max) {
		return false
	}
	if p.Step.IsPositive() {
		rem := price.Sub(p.Min).Mod(p.Step)
		if !rem.IsZero() {
			return false
		}
	}
	return true
}

// PercentPrice bounds an order price relative to a weighted average price.
type PercentPrice struct {
	MultiplierUp      decimal.Decimal
	MultiplierDown    decimal.Decimal
	AvgPricePeriod    int // 0 means the last price is used
}

// Valid reports whether price is within [avg*down, avg*up].
func (pp PercentPrice) Valid(price, weightedAveragePrice decimal.Decimal) bool {
	upper := weightedAveragePrice.Mul(pp.MultiplierUp)
	lower := weightedAveragePrice.Mul(pp.MultiplierDown)
	return price.LessThanOrEqual(upper) && price.GreaterThanOrEqual(lower)
}

// Size describes a symbol's valid order-size range and step.
type Size struct {
	Min  decimal.Decimal
	Max  decimal.Decimal
	Step decimal.Decimal
}

// RoundDown quantizes size down to the nearest valid step.
func (s Size) RoundDown(size decimal.Decimal) decimal.Decimal {
	return s.round(size, roundDown)
}

// RoundUp quantizes size up to the nearest valid step.
func (s Size) RoundUp(size decimal.Decimal) decimal.Decimal {
	return s.round(size, roundUp)
}

func (s Size) round(size decimal.Decimal, rounding roundingMode) decimal.Decimal {
	if size.LessThan(s.Min) {
		return decimal.Zero
	}
	if s.Max.IsPositive() {
		size = decimal.Min(size, s.Max)
	}
	if s.Step.IsPositive() {
		size = quantize(size, s.Step, rounding)
	}
	return size
}

// Valid reports whether size satisfies min/max/step.
func (s Size) Valid(size decimal.Decimal) bool {
	if size.LessThan(s.Min) {
		return false
	}
	if s.Max.IsPositive() && size.GreaterThan(s.Max) {
		return false
	}
	if s.Step.IsPositive() {
		rem := size.Sub(s.Min).Mod(s.Step)
		if !rem.IsZero() {
			return false
		}
	}
	return true
}

// Validate returns an OrderError if size is not Valid.
func (s Size) Validate(size decimal.Decimal) error {
	if !s.Valid(size) {
		return fmt.Errorf("%w: size %s must be between [%s; %s] with a step of %s",
			ErrOrder, size, s.Min, s.Max, s.Step)
	}
	return nil
}

// MinNotional enforces a minimum price*size for an order.
type MinNotional struct {
	MinNotional    decimal.Decimal
	ApplyToMarket  bool
	AvgPricePeriod int
}

// Valid reports whether price*size clears the minimum notional.
func (m MinNotional) Valid(price, size decimal.Decimal) bool {
	return price.Mul(size).GreaterThanOrEqual(m.MinNotional)
}

// MinSizeForPrice returns the smallest size that clears the minimum notional
// at price.
func (m MinNotional) MinSizeForPrice(price decimal.Decimal) decimal.Decimal {
	return m.MinNotional.Div(price)
}

// ValidateLimit returns an OrderError if the limit order violates the
// minimum notional.
func (m MinNotional) ValidateLimit(price, size decimal.Decimal) error {
	if !m.Valid(price, size) {
		return fmt.Errorf("%w: price %s * size %s (%s) must be between [%s; inf]",
			ErrOrder, price, size, price.Mul(size), m.MinNotional)
	}
	return nil
}

// ValidateMarket applies ValidateLimit only if ApplyToMarket is set.
func (m MinNotional) ValidateMarket(avgPrice, size decimal.Decimal) error {
	if !m.ApplyToMarket {
		return nil
	}
	return m.ValidateLimit(avgPrice, size)
}

// Filters bundles all per-symbol trading constraints plus capability flags.
type Filters struct {
	Price       Price
	PercentPrice PercentPrice
	Size        Size
	MinNotional MinNotional

	BasePrecision  int
	QuotePrecision int

	Spot           bool
	CrossMargin    bool
	IsolatedMargin bool
}

// DefaultFilters returns permissive filters (no min/max/step) useful for
// tests and synthetic strategies.
func DefaultFilters() Filters {
	return Filters{
		BasePrecision:  8,
		QuotePrecision: 8,
		Spot:           true,
	}
}

// roundingMode selects how quantize resolves a fractional step count.
type roundingMode int

const (
	roundDown roundingMode = iota
	roundUp
	roundHalfUp
)

// quantize rounds value to the nearest multiple of step using rounding.
func quantize(value, step decimal.Decimal, rounding roundingMode) decimal.Decimal {
	quotient := value.DivRound(step, 16)
	switch rounding {
	case roundDown:
		quotient = quotient.Truncate(0)
	case roundUp:
		quotient = quotient.Ceil()
	default:
		quotient = quotient.Round(0)
	}
	return quotient.Mul(step)
}
