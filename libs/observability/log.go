package observability

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// LogEvent emits a single structured JSON line carrying whatever RunInfo is
// attached to ctx plus the caller-supplied fields.
func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.RunID != "" {
		payload["run_id"] = info.RunID
	}
	if info.Exchange != "" {
		payload["exchange"] = info.Exchange
	}
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}
	if info.Interval != "" {
		payload["interval"] = info.Interval
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogFetchStart logs the beginning of an exchange or storage fetch.
func LogFetchStart(ctx context.Context, source, op string, input any) {
	LogEvent(ctx, "info", "fetch_start", map[string]any{
		"source": source,
		"op":     op,
		"input":  input,
	})
}

// LogFetchEnd logs the completion of an exchange or storage fetch.
func LogFetchEnd(ctx context.Context, source, op string, duration time.Duration, err error) {
	fields := map[string]any{
		"source":     source,
		"op":         op,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "fetch_end", fields)
}

// LogSpanStored logs a persisted span, the unit Chandler/Trades flush on.
func LogSpanStored(ctx context.Context, shard, key string, start, end int64, count int) {
	LogEvent(ctx, "info", "span_stored", map[string]any{
		"shard": shard,
		"key":   key,
		"start": start,
		"end":   end,
		"count": count,
	})
}

func normalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch key {
		case "input", "payload":
			out[key] = RedactValue(value)
			continue
		}
		if err, ok := value.(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = value
	}
	return out
}
