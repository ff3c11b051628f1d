package core

import "errors"

var (
	// ErrOrder marks a permanent order-placement failure (bad parameters,
	// filter violation, insufficient balance). Not retried.
	ErrOrder = errors.New("order rejected")

	// ErrOrderWouldBeTaker is returned when a post-only limit order would
	// have matched immediately.
	ErrOrderWouldBeTaker = errors.New("order would be taker")

	// ErrOrderMissing is returned when an operation references an order id
	// the exchange no longer knows about.
	ErrOrderMissing = errors.New("order missing")

	// ErrConsistency marks a programming-error-level invariant violation
	// (overlapping spans, out-of-range batch time). Always fatal.
	ErrConsistency = errors.New("consistency violation")
)
