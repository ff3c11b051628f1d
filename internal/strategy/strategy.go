// Package strategy defines the pure state-machine Strategy contract every
// trading rule implements, the composable wrappers (MidTrend, Persistence,
// Changed) the Basic Trader layers on top of a strategy's raw advice, and
// the constraint value types the optimizer samples strategy parameters from.
package strategy

import "jax-research-platform/internal/core"

// Strategy is a pure state machine over a candle stream: Update advances
// it, Advice reports its current recommendation, and Maturity is the
// minimum number of updates before Mature becomes true — advice returned
// before maturity must be core.AdviceNone.
type Strategy interface {
	Update(candle core.Candle)
	Advice() core.Advice
	Maturity() int
	Mature() bool
}

// Meta describes a strategy type's constructor parameters for the
// optimizer: each named parameter (or tuple of co-varying parameters) maps
// to the Constraint it must be sampled from and validated against.
type Meta struct {
	Constraints map[string]Constraint
}

// Factory builds a fresh Strategy instance from a set of named parameter
// values, matching a Meta's constraints by name. Used by the optimizer to
// materialize a gene set and by the Basic Trader's RESTART handling to
// rebuild a strategy from scratch.
type Factory func(params map[string]any) (Strategy, error)
