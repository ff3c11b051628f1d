package trader

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"jax-research-platform/internal/core"
	"jax-research-platform/libs/observability"
)

// EventKind names one of the typed events a Basic Trader run emits.
type EventKind string

const (
	EventCandle          EventKind = "candle"
	EventPositionsOpened EventKind = "positions_opened"
	EventPositionsClosed EventKind = "positions_closed"
	EventFinished        EventKind = "finished"
	EventErrored         EventKind = "errored"
)

// Event is one item published on an Events subscription.
type Event struct {
	Kind EventKind

	Candle          *core.Candle
	OpenedPosition  *OpenPosition
	ClosedLong      *core.Long
	ClosedShort     *core.Short
	Summary         *core.TradingSummary
	Err             error
}

// Events is a per-run typed pub/sub bus. The trader publishes; any number
// of subscribers (a CLI progress printer, a checkpoint writer, the
// optimizer's market-data preparation stage reusing a live run) drain it
// concurrently. A slow subscriber never blocks the trader: publish drops
// the event for a subscriber whose buffer is full instead of stalling the
// run, matching the fire-and-forget semantics of the original emitter.
type Events struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewEvents builds an empty Events bus.
func NewEvents() *Events {
	return &Events{subs: make(map[string]chan Event)}
}

// Subscribe registers a new buffered channel and returns its id (for
// Unsubscribe) and receive-only channel.
func (e *Events) Subscribe(buffer int) (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subs[id] = ch
	e.mu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (e *Events) Unsubscribe(id string) {
	e.mu.Lock()
	ch, ok := e.subs[id]
	if ok {
		delete(e.subs, id)
	}
	e.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (e *Events) publish(ctx context.Context, ev Event) {
	observability.LogEvent(ctx, logLevel(ev), "trader_"+string(ev.Kind), logFields(ev))

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func logLevel(ev Event) string {
	if ev.Kind == EventErrored {
		return "error"
	}
	return "info"
}

func logFields(ev Event) map[string]any {
	fields := map[string]any{}
	if ev.Candle != nil {
		fields["candle_time"] = ev.Candle.Time
	}
	if ev.OpenedPosition != nil {
		fields["symbol"] = ev.OpenedPosition.Symbol()
	}
	if ev.ClosedLong != nil {
		fields["profit"] = ev.ClosedLong.Profit().String()
		fields["reason"] = ev.ClosedLong.Reason.String()
	}
	if ev.ClosedShort != nil {
		fields["profit"] = ev.ClosedShort.Profit().String()
		fields["reason"] = ev.ClosedShort.Reason.String()
	}
	if ev.Summary != nil {
		fields["num_positions"] = ev.Summary.NumPositions()
	}
	if ev.Err != nil {
		fields["error"] = ev.Err.Error()
	}
	return fields
}
