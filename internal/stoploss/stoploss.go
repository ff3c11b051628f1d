// Package stoploss tracks a downside guard on an open position: the price
// level at which the Basic Trader should close to cap losses.
package stoploss

import (
	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

var one = decimal.NewFromInt(1)

// StopLoss exposes UpsideHit (guards a long position) and DownsideHit
// (guards a short position) relative to the last open position's entry
// price and a configured fraction. When trailing, the reference moves
// with the best price seen since entry instead of staying pinned to it.
type StopLoss struct {
	fraction decimal.Decimal
	trailing bool
	active   bool
	high     decimal.Decimal
	low      decimal.Decimal
	last     decimal.Decimal
}

// New builds a StopLoss guarding at fraction (0 disables both hit checks).
func New(fraction decimal.Decimal, trailing bool) *StopLoss {
	return &StopLoss{fraction: fraction, trailing: trailing}
}

// Clear resets the tracker to a new position opened at candle's close.
func (s *StopLoss) Clear(candle core.Candle) {
	s.active = true
	s.high = candle.Close
	s.low = candle.Close
	s.last = candle.Close
}

// Update folds in a new candle, advancing the trailing high/low if enabled.
func (s *StopLoss) Update(candle core.Candle) {
	if !s.active {
		return
	}
	if s.trailing {
		if candle.Close.GreaterThan(s.high) {
			s.high = candle.Close
		}
		if candle.Close.LessThan(s.low) {
			s.low = candle.Close
		}
	}
	s.last = candle.Close
}

// UpsideHit reports whether the price has fallen fraction below the high
// reference, i.e. the stop-loss guarding a long position has triggered.
func (s *StopLoss) UpsideHit() bool {
	if !s.active || s.fraction.IsZero() {
		return false
	}
	threshold := s.high.Mul(one.Sub(s.fraction))
	return s.last.LessThanOrEqual(threshold)
}

// DownsideHit reports whether the price has risen fraction above the low
// reference, i.e. the stop-loss guarding a short position has triggered.
func (s *StopLoss) DownsideHit() bool {
	if !s.active || s.fraction.IsZero() {
		return false
	}
	threshold := s.low.Mul(one.Add(s.fraction))
	return s.last.GreaterThanOrEqual(threshold)
}

// Snapshot captures the tracker's reference state so a trader run can
// persist and resume without losing the trailing high/low since entry.
type Snapshot struct {
	Fraction decimal.Decimal `json:"fraction"`
	Trailing bool            `json:"trailing"`
	Active   bool            `json:"active"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Last     decimal.Decimal `json:"last"`
}

// Snapshot returns the tracker's current state.
func (s *StopLoss) Snapshot() Snapshot {
	return Snapshot{
		Fraction: s.fraction, Trailing: s.trailing, Active: s.active,
		High: s.high, Low: s.low, Last: s.last,
	}
}

// Restore rebuilds a StopLoss from a previously captured Snapshot.
func Restore(snap Snapshot) *StopLoss {
	return &StopLoss{
		fraction: snap.Fraction, trailing: snap.Trailing, active: snap.Active,
		high: snap.High, low: snap.Low, last: snap.Last,
	}
}
