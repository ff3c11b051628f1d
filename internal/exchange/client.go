package exchange

import (
	"context"
	"fmt"
	"time"

	"jax-research-platform/libs/observability"
	"jax-research-platform/libs/ratelimit"
	"jax-research-platform/libs/resilience"
)

// BaseClient is the shared call scaffolding a concrete venue adapter embeds:
// every outbound call goes through the rate limiter first (to avoid ever
// tripping the venue's own limits) and then the circuit breaker (to stop
// hammering a venue that is already failing). It also records
// RecordExchangeCall for every attempt.
type BaseClient struct {
	Venue   string
	limiter *ratelimit.Limiter
	breaker *resilience.CircuitBreaker
}

// NewBaseClient builds call scaffolding for a venue named name. rlCfg sizes
// the default per-endpoint bucket; call WithEndpoint on the returned
// client's Limiter() for endpoints that carry a different exchange-assigned
// weight (e.g. batch order placement costs more than a single cancel).
func NewBaseClient(name string, rlCfg ratelimit.Config) *BaseClient {
	return &BaseClient{
		Venue:   name,
		limiter: ratelimit.New(rlCfg),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultConfig(name)),
	}
}

// Limiter exposes the rate limiter so an adapter can register per-endpoint
// weights via WithEndpoint.
func (c *BaseClient) Limiter() *ratelimit.Limiter { return c.limiter }

// Call runs fn after acquiring weight tokens under endpoint and through the
// circuit breaker, recording the outcome. A rate-limiter wait that is
// cancelled by ctx, and any circuit-breaker short-circuit, are both
// reported as retriable exchange errors: the caller is expected to back off
// and try again rather than treat either as a permanent failure.
func Call[T any](ctx context.Context, c *BaseClient, op, endpoint string, weight float64, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := c.limiter.Acquire(ctx, endpoint, weight); err != nil {
		return zero, NewRetriable(c.Venue, op, fmt.Errorf("rate limit: %w", err))
	}

	start := time.Now()
	result, err := c.breaker.ExecuteWithContext(ctx, func() (any, error) {
		return fn(ctx)
	})
	observability.RecordExchangeCall(ctx, c.Venue, op, time.Since(start), err)

	if err != nil {
		return zero, NewRetriable(c.Venue, op, err)
	}
	v, _ := result.(T)
	return v, nil
}
