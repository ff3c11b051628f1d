package observability

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	exchangeKey  contextKey = "exchange"
	symbolKey    contextKey = "symbol"
	intervalKey  contextKey = "interval"
)

// RunInfo carries trace identifiers through a request context.
// RunID is per trader/optimizer run. Exchange/Symbol/Interval identify the
// market the current operation concerns.
type RunInfo struct {
	RunID    string
	Exchange string
	Symbol   string
	Interval string
}

func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.RunID != "" {
		ctx = context.WithValue(ctx, runIDKey, info.RunID)
	}
	if info.Exchange != "" {
		ctx = context.WithValue(ctx, exchangeKey, info.Exchange)
	}
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	if info.Interval != "" {
		ctx = context.WithValue(ctx, intervalKey, info.Interval)
	}
	return ctx
}

func RunInfoFromContext(ctx context.Context) RunInfo {
	info := RunInfo{}
	if value := ctx.Value(runIDKey); value != nil {
		if runID, ok := value.(string); ok {
			info.RunID = runID
		}
	}
	if value := ctx.Value(exchangeKey); value != nil {
		if exchange, ok := value.(string); ok {
			info.Exchange = exchange
		}
	}
	if value := ctx.Value(symbolKey); value != nil {
		if symbol, ok := value.(string); ok {
			info.Symbol = symbol
		}
	}
	if value := ctx.Value(intervalKey); value != nil {
		if interval, ok := value.(string); ok {
			info.Interval = interval
		}
	}
	return info
}
