package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"testing"
	"time"
)

func captureLog(fn func()) map[string]interface{} {
	old := logger
	defer func() { logger = old }()

	var buf bytes.Buffer
	logger = log.New(&buf, "", 0)

	fn()

	var result map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return nil
	}
	return result
}

func TestRecordExchangeCall_Success(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{
		RunID:    "run_123",
		Exchange: "binance",
	})

	result := captureLog(func() {
		RecordExchangeCall(ctx, "binance", "stream_historical_candles", 250*time.Millisecond, nil)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "exchange_call" {
		t.Errorf("expected name=exchange_call, got %v", result["name"])
	}
	if result["exchange"] != "binance" {
		t.Errorf("expected exchange=binance, got %v", result["exchange"])
	}
	if result["op"] != "stream_historical_candles" {
		t.Errorf("expected op=stream_historical_candles, got %v", result["op"])
	}
	if result["success"] != true {
		t.Errorf("expected success=true, got %v", result["success"])
	}
	latency := result["latency_ms"].(float64)
	if latency < 249 || latency > 251 {
		t.Errorf("expected latency_ms ~250, got %v", latency)
	}
	if result["run_id"] != "run_123" {
		t.Errorf("expected run_id=run_123, got %v", result["run_id"])
	}
}

func TestRecordExchangeCall_Failure(t *testing.T) {
	ctx := context.Background()

	result := captureLog(func() {
		RecordExchangeCall(ctx, "binance", "place_order", 100*time.Millisecond, io.EOF)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
	if result["error"] != "EOF" {
		t.Errorf("expected error=EOF, got %v", result["error"])
	}
}

func TestRecordSpanFlush_Success(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{Symbol: "eth-btc"})

	result := captureLog(func() {
		RecordSpanFlush(ctx, "binance:eth-btc:1h", "candle", 1000, nil)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "span_flush" {
		t.Errorf("expected name=span_flush, got %v", result["name"])
	}
	if result["shard"] != "binance:eth-btc:1h" {
		t.Errorf("expected shard, got %v", result["shard"])
	}
	if result["items"] != float64(1000) {
		t.Errorf("expected items=1000, got %v", result["items"])
	}
	if _, hasError := result["error"]; hasError {
		t.Errorf("did not expect error field, got %v", result["error"])
	}
}

func TestRecordSpanFlush_Failure(t *testing.T) {
	result := captureLog(func() {
		RecordSpanFlush(context.Background(), "binance:eth-btc:1h", "candle", 0, io.EOF)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["error"] != "EOF" {
		t.Errorf("expected error=EOF, got %v", result["error"])
	}
}

func TestRecordGenerationDuration(t *testing.T) {
	result := captureLog(func() {
		RecordGenerationDuration(context.Background(), 7, 1200*time.Millisecond, 15)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "optimizer_generation" {
		t.Errorf("expected name=optimizer_generation, got %v", result["name"])
	}
	if result["generation"] != float64(7) {
		t.Errorf("expected generation=7, got %v", result["generation"])
	}
	if result["front_size"] != float64(15) {
		t.Errorf("expected front_size=15, got %v", result["front_size"])
	}
	latency := result["latency_ms"].(float64)
	if latency < 1199 || latency > 1201 {
		t.Errorf("expected latency_ms ~1200, got %v", latency)
	}
}

func TestMain(m *testing.M) {
	if os.Getenv("VERBOSE") != "1" {
		logger = log.New(io.Discard, "", 0)
	}
	os.Exit(m.Run())
}
