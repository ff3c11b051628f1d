package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// YearMS is the number of milliseconds in a 365-day year, used to annualize
// a return-on-investment over a position's duration.
const YearMS int64 = 365 * 24 * 60 * 60 * 1000

// FloorMultiple rounds value down to the nearest multiple of multiple.
func FloorMultiple(value, multiple int64) int64 {
	return value - floorMod(value, multiple)
}

// CeilMultiple rounds value up to the nearest multiple of multiple.
func CeilMultiple(value, multiple int64) int64 {
	rem := floorMod(value, multiple)
	if rem == 0 {
		return value
	}
	return value + multiple - rem
}

func floorMod(value, multiple int64) int64 {
	m := value % multiple
	if m < 0 {
		m += multiple
	}
	return m
}

// RoundHalfUp rounds value to precision decimal places, half away from zero.
func RoundHalfUp(value decimal.Decimal, precision int32) decimal.Decimal {
	return value.Round(precision)
}

// AnnualizedROI projects roi, realized over duration milliseconds, to a
// one-year horizon. Ref: investopedia's guide to calculating ROI.
func AnnualizedROI(duration int64, roi decimal.Decimal) decimal.Decimal {
	if duration == 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(duration).Div(decimal.NewFromInt(YearMS))
	if n.IsZero() {
		return decimal.Zero
	}
	base := decimal.NewFromInt(1).Add(roi)
	if base.IsNegative() {
		// (1+roi) raised to a non-integer power is undefined for a negative
		// base; a total loss compounds to a total loss regardless of n.
		return decimal.NewFromInt(-1)
	}
	exponent := decimal.NewFromInt(1).Div(n)
	return decimalPow(base, exponent).Sub(decimal.NewFromInt(1))
}

// decimalPow computes base^exponent via float64, the same precision
// concession the solver already makes for its fitness statistics: an
// annualized ROI is a display/reporting figure, not a value fed back into
// position accounting.
func decimalPow(base, exponent decimal.Decimal) decimal.Decimal {
	b, _ := base.Float64()
	e, _ := exponent.Float64()
	result := math.Pow(b, e)
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return decimal.NewFromInt(math.MaxInt64)
	}
	return decimal.NewFromFloat(result)
}
