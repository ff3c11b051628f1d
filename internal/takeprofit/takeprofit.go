// Package takeprofit tracks an upside guard on an open position: the price
// level at which the Basic Trader should lock in gains.
package takeprofit

import (
	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

var one = decimal.NewFromInt(1)

// TakeProfit exposes UpsideHit (guards a long position) and DownsideHit
// (guards a short position) relative to the last open position's entry
// price and a configured fraction. Unlike StopLoss, the reference never
// trails — it stays pinned to the entry price for the life of the position.
type TakeProfit struct {
	fraction decimal.Decimal
	active   bool
	entry    decimal.Decimal
	last     decimal.Decimal
}

// New builds a TakeProfit guarding at fraction (0 disables both hit checks).
func New(fraction decimal.Decimal) *TakeProfit {
	return &TakeProfit{fraction: fraction}
}

// Clear resets the tracker to a new position opened at candle's close.
func (tp *TakeProfit) Clear(candle core.Candle) {
	tp.active = true
	tp.entry = candle.Close
	tp.last = candle.Close
}

// Update folds in a new candle.
func (tp *TakeProfit) Update(candle core.Candle) {
	if !tp.active {
		return
	}
	tp.last = candle.Close
}

// UpsideHit reports whether the price has risen fraction above entry,
// i.e. the take-profit guarding a long position has triggered.
func (tp *TakeProfit) UpsideHit() bool {
	if !tp.active || tp.fraction.IsZero() {
		return false
	}
	threshold := tp.entry.Mul(one.Add(tp.fraction))
	return tp.last.GreaterThanOrEqual(threshold)
}

// DownsideHit reports whether the price has fallen fraction below entry,
// i.e. the take-profit guarding a short position has triggered.
func (tp *TakeProfit) DownsideHit() bool {
	if !tp.active || tp.fraction.IsZero() {
		return false
	}
	threshold := tp.entry.Mul(one.Sub(tp.fraction))
	return tp.last.LessThanOrEqual(threshold)
}

// Snapshot captures the tracker's reference state so a trader run can
// persist and resume without losing the entry price.
type Snapshot struct {
	Fraction decimal.Decimal `json:"fraction"`
	Active   bool            `json:"active"`
	Entry    decimal.Decimal `json:"entry"`
	Last     decimal.Decimal `json:"last"`
}

// Snapshot returns the tracker's current state.
func (tp *TakeProfit) Snapshot() Snapshot {
	return Snapshot{Fraction: tp.fraction, Active: tp.active, Entry: tp.entry, Last: tp.last}
}

// Restore rebuilds a TakeProfit from a previously captured Snapshot.
func Restore(snap Snapshot) *TakeProfit {
	return &TakeProfit{fraction: snap.Fraction, active: snap.Active, entry: snap.Entry, last: snap.Last}
}
