package exchange

import (
	"errors"
	"fmt"

	"jax-research-platform/internal/core"
)

// ErrUnsupported is returned by a capability-gated method when the venue
// does not support it; callers should have checked Capabilities first.
var ErrUnsupported = errors.New("exchange: operation not supported by this venue")

// Error wraps a venue-reported failure with a Retriable flag: Chandler and
// the Basic Trader retry retriable errors with backoff and give up on
// permanent ones.
type Error struct {
	Venue     string
	Op        string
	Retriable bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Retriable {
		kind = "retriable"
	}
	return fmt.Sprintf("exchange %s: %s: %s error: %v", e.Venue, e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewRetriable wraps err as a retriable exchange failure (rate limit,
// timeout, 5xx, connection reset).
func NewRetriable(venue, op string, err error) *Error {
	return &Error{Venue: venue, Op: op, Retriable: true, Err: err}
}

// NewPermanent wraps err as a non-retriable exchange failure (bad request,
// auth failure, invalid symbol).
func NewPermanent(venue, op string, err error) *Error {
	return &Error{Venue: venue, Op: op, Retriable: false, Err: err}
}

// OrderError wraps core.ErrOrder with the venue's rejection reason; it is
// always permanent for the specific order (the Basic Trader does not retry
// a rejected order with the same parameters).
type OrderError struct {
	Venue  string
	Symbol string
	Reason string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("exchange %s: order rejected for %s: %s", e.Venue, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error { return core.ErrOrder }

// NewOrderWouldBeTaker reports that a post-only limit order would have
// matched immediately; wraps core.ErrOrderWouldBeTaker.
func NewOrderWouldBeTaker(venue, symbol string) error {
	return fmt.Errorf("%w: %s order on %s would take liquidity", core.ErrOrderWouldBeTaker, venue, symbol)
}

// NewOrderMissing reports that a cancel or status query referenced an order
// the venue no longer knows about; wraps core.ErrOrderMissing.
func NewOrderMissing(venue, symbol, orderID string) error {
	return fmt.Errorf("%w: %s order %s on %s", core.ErrOrderMissing, orderID, venue, symbol)
}
