package observability

import (
	"context"
	"time"
)

// RecordExchangeCall logs latency/outcome for a single exchange API call.
func RecordExchangeCall(ctx context.Context, exchange, op string, duration time.Duration, err error) {
	fields := map[string]any{
		"name":       "exchange_call",
		"exchange":   exchange,
		"op":         op,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordSpanFlush logs a Chandler/Trades batch+span flush to storage.
func RecordSpanFlush(ctx context.Context, shard, key string, items int, err error) {
	fields := map[string]any{
		"name":  "span_flush",
		"shard": shard,
		"key":   key,
		"items": items,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordGenerationDuration logs one NSGA-II generation's wall time and
// front size for the optimizer.
func RecordGenerationDuration(ctx context.Context, generation int, duration time.Duration, frontSize int) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":       "optimizer_generation",
		"generation": generation,
		"latency_ms": duration.Milliseconds(),
		"front_size": frontSize,
	})
}
