// Package trader drives a Strategy plus StopLoss/TakeProfit over a Chandler
// candle stream, opening at most one position at a time through a Broker
// (paper/live) or a broker.Simulator (backtest), and accumulates a
// core.TradingSummary. It is a line-for-line port of the Basic trading
// loop's responsibilities: missed-candle handling, position accounting,
// typed event emission and graceful-shutdown finishing.
package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/broker"
	"jax-research-platform/internal/chandler"
	"jax-research-platform/internal/core"
	"jax-research-platform/internal/informant"
	"jax-research-platform/internal/stoploss"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/internal/takeprofit"
	"jax-research-platform/libs/observability"
)

// Clock abstracts wall-clock time so tests can pin "now" for the
// paper/live finish() computation.
type Clock func() core.Timestamp

func systemClock() core.Timestamp { return time.Now().UnixMilli() }

// Basic is the event-driven backtest/paper/live trading engine.
type Basic struct {
	chandler   *chandler.Chandler
	informant  *informant.Informant
	liveBroker broker.Broker
	events     *Events
	clock      Clock
}

// Option configures optional Basic dependencies.
type Option func(*Basic)

// WithBroker wires the live/paper order-placement broker; required unless
// every run this Basic drives uses TradingModeBacktest.
func WithBroker(b broker.Broker) Option {
	return func(t *Basic) { t.liveBroker = b }
}

// WithEvents wires a shared Events bus; a fresh private one is created if
// omitted.
func WithEvents(events *Events) Option {
	return func(t *Basic) { t.events = events }
}

// WithClock overrides the wall-clock source used to compute a paper/live
// run's finish time.
func WithClock(clock Clock) Option {
	return func(t *Basic) { t.clock = clock }
}

// New builds a Basic trader over ch and inf.
func New(ch *chandler.Chandler, inf *informant.Informant, opts ...Option) *Basic {
	t := &Basic{chandler: ch, informant: inf, events: NewEvents(), clock: systemClock}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Events returns the trader's event bus for subscribers.
func (t *Basic) Events() *Events { return t.events }

// Initialize builds a fresh BasicState for config: it validates the
// configuration against the symbol's filters, constructs the strategy, and
// if AdjustStart is set, backs Next up by Strategy.Maturity()-1 candles so
// the main loop warms the strategy up before summary.Start.
func (t *Basic) Initialize(ctx context.Context, config BasicConfig) (*BasicState, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	_, filters, err := t.informant.GetFeesFilters(config.Exchange, config.Symbol)
	if err != nil {
		return nil, fmt.Errorf("trader: initialize: %w", err)
	}
	if !filters.Spot {
		return nil, fmt.Errorf("trader: initialize: %s is not spot-tradable on %s", config.Symbol, config.Exchange)
	}
	if config.Short && !filters.IsolatedMargin {
		return nil, fmt.Errorf(
			"trader: initialize: %s does not support isolated margin on %s, required for short positions",
			config.Symbol, config.Exchange,
		)
	}
	if !config.Quote.GreaterThan(filters.Price.Min) {
		return nil, fmt.Errorf(
			"trader: initialize: quote %s must exceed %s's minimum price %s",
			config.Quote, config.Symbol, filters.Price.Min,
		)
	}

	strat, err := config.Strategy.construct()
	if err != nil {
		return nil, fmt.Errorf("trader: initialize: %w", err)
	}

	next := config.Start
	if config.AdjustStart {
		warmupCandles := strat.Maturity() - 1
		observability.LogEvent(ctx, "info", "trader_adjust_start", map[string]any{
			"exchange": config.Exchange, "symbol": config.Symbol, "candles": warmupCandles,
		})
		next = config.Start - int64(warmupCandles)*config.Interval
		if next < 0 {
			next = 0
		}
	}

	return &BasicState{
		Config:           config,
		Strategy:         strat,
		Changed:          strategy.NewChanged(true),
		StopLoss:         stoploss.New(config.StopLossFraction, config.TrailStopLoss),
		TakeProfit:       takeprofit.New(config.TakeProfitFraction),
		Quote:            config.Quote,
		Summary:          core.NewTradingSummary(config.Start, config.Quote, config.QuoteAsset()),
		Next:             next,
		RealStart:        t.clock(),
		OpenNewPositions: true,
		CloseOnExit:      config.CloseOnExit,
	}, nil
}

// Observe folds candle into state without any position-opening/closing
// side effects: it is the warm-up primitive both AdjustStart's pre-start
// window and a resumed run's re-warm window rely on.
func (t *Basic) Observe(state *BasicState, candle core.Candle) {
	state.StopLoss.Update(candle)
	state.TakeProfit.Update(candle)
	state.Strategy.Update(candle)
	state.Changed.Update(state.Strategy.Advice())
	if state.FirstCandle == nil {
		c := candle
		state.FirstCandle = &c
	}
	lc := candle
	state.LastCandle = &lc
	state.Next = candle.Time + state.Config.Interval
}

// Run streams candles from state.Next to state.Config.End, ticking the
// trader over each one, until the stream ends or ctx is cancelled. On
// return (including by cancellation), it applies CloseOnExit and records
// the run's finish time on state.Summary.
func (t *Basic) Run(ctx context.Context, state *BasicState) (err error) {
	config := state.Config
	ctx = observability.WithRunInfo(ctx, observability.RunInfo{
		Exchange: config.Exchange, Symbol: config.Symbol, Interval: fmt.Sprintf("%d", config.Interval),
	})

	defer func() {
		if finishErr := t.finish(ctx, state); err == nil {
			err = finishErr
		}
		if err != nil {
			t.events.publish(ctx, Event{Kind: EventErrored, Err: err})
		} else {
			t.events.publish(ctx, Event{Kind: EventFinished, Summary: state.Summary})
		}
	}()

	stream, err := t.chandler.StreamCandles(
		ctx, config.Exchange, config.Symbol, config.Interval, state.Next, config.End, true, false,
	)
	if err != nil {
		return fmt.Errorf("trader: run: %w", err)
	}

	for ev := range stream {
		if ev.Err != nil {
			return fmt.Errorf("trader: run: %w", ev.Err)
		}
		candle := ev.Candle

		if state.LastCandle != nil {
			timeDiff := candle.Time - state.LastCandle.Time
			if timeDiff >= config.Interval*2 {
				if err := t.handleMissedCandles(ctx, state, timeDiff); err != nil {
					return err
				}
			}
		}

		if err := t.tick(ctx, state, candle); err != nil {
			return err
		}
	}
	return nil
}

func (t *Basic) handleMissedCandles(ctx context.Context, state *BasicState, timeDiff core.Interval) error {
	config := state.Config
	switch config.MissedCandlePolicy {
	case core.MissedCandleRestart:
		observability.LogEvent(ctx, "info", "trader_strategy_restarted", map[string]any{
			"exchange": config.Exchange, "symbol": config.Symbol,
		})
		strat, err := config.Strategy.construct()
		if err != nil {
			return fmt.Errorf("trader: restart strategy: %w", err)
		}
		state.Strategy = strat
	case core.MissedCandleLast:
		numMissed := timeDiff/config.Interval - 1
		observability.LogEvent(ctx, "info", "trader_filling_missed_candles", map[string]any{
			"exchange": config.Exchange, "symbol": config.Symbol, "count": numMissed,
		})
		last := *state.LastCandle
		for i := core.Timestamp(1); i <= numMissed; i++ {
			missed := core.Candle{
				Time: last.Time + i*config.Interval,
				Open: last.Close, High: last.Close, Low: last.Close, Close: last.Close,
				Volume: decimal.Zero, Closed: true,
			}
			if err := t.tick(ctx, state, missed); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Basic) tick(ctx context.Context, state *BasicState, candle core.Candle) error {
	config := state.Config

	t.events.publish(ctx, Event{Kind: EventCandle, Candle: &candle})

	state.StopLoss.Update(candle)
	state.TakeProfit.Update(candle)
	state.Strategy.Update(candle)
	advice := state.Changed.Update(state.Strategy.Advice())

	if candle.Time < state.Summary.Start && advice != core.AdviceNone {
		return fmt.Errorf("trader: %w: strategy gave %s advice during warm-up at t=%d",
			core.ErrConsistency, advice, candle.Time)
	}

	switch {
	case state.OpenPosition.Long != nil:
		switch {
		case advice == core.AdviceShort || advice == core.AdviceLiquidate:
			if _, err := t.closeLongPosition(ctx, state, candle, core.CloseReasonStrategy); err != nil {
				return err
			}
		case state.StopLoss.UpsideHit():
			if _, err := t.closeLongPosition(ctx, state, candle, core.CloseReasonStopLoss); err != nil {
				return err
			}
		case state.TakeProfit.UpsideHit():
			if _, err := t.closeLongPosition(ctx, state, candle, core.CloseReasonTakeProfit); err != nil {
				return err
			}
		}
	case state.OpenPosition.Short != nil:
		switch {
		case advice == core.AdviceLong || advice == core.AdviceLiquidate:
			if _, err := t.closeShortPosition(ctx, state, candle, core.CloseReasonStrategy); err != nil {
				return err
			}
		case state.StopLoss.DownsideHit():
			if _, err := t.closeShortPosition(ctx, state, candle, core.CloseReasonStopLoss); err != nil {
				return err
			}
		case state.TakeProfit.DownsideHit():
			if _, err := t.closeShortPosition(ctx, state, candle, core.CloseReasonTakeProfit); err != nil {
				return err
			}
		}
	}

	if !state.OpenPosition.IsOpen() && state.OpenNewPositions {
		switch {
		case config.Long && advice == core.AdviceLong:
			if err := t.openLongPosition(ctx, state, candle); err != nil {
				return err
			}
		case config.Short && advice == core.AdviceShort:
			if err := t.openShortPosition(ctx, state, candle); err != nil {
				return err
			}
		}
		state.StopLoss.Clear(candle)
		state.TakeProfit.Clear(candle)
	}

	if state.FirstCandle == nil {
		c := candle
		state.FirstCandle = &c
	}
	lc := candle
	state.LastCandle = &lc
	state.Next = candle.Time + config.Interval
	return nil
}

// ClosePosition closes the current open position (if its symbol matches)
// with reason, for callers driving a graceful shutdown outside the main
// loop (e.g. a CLI SIGINT handler).
func (t *Basic) ClosePosition(ctx context.Context, state *BasicState, symbol string, reason core.CloseReason) error {
	if !state.OpenPosition.IsOpen() || state.OpenPosition.Symbol() != symbol || state.LastCandle == nil {
		return fmt.Errorf("trader: close position: %s has no open position", symbol)
	}
	if state.OpenPosition.Long != nil {
		_, err := t.closeLongPosition(ctx, state, *state.LastCandle, reason)
		return err
	}
	_, err := t.closeShortPosition(ctx, state, *state.LastCandle, reason)
	return err
}

func (t *Basic) finish(ctx context.Context, state *BasicState) error {
	config := state.Config

	if state.CloseOnExit && state.OpenPosition.IsOpen() && state.LastCandle != nil {
		if err := t.ClosePosition(ctx, state, state.OpenPosition.Symbol(), core.CloseReasonCancelled); err != nil {
			return fmt.Errorf("trader: finish: %w", err)
		}
	}

	var end core.Timestamp
	if config.Mode == core.TradingModeBacktest {
		if state.LastCandle != nil {
			end = state.LastCandle.Time + config.Interval
		} else {
			end = state.Summary.Start + config.Interval
		}
	} else {
		now := t.clock()
		end = now
		if config.End < end {
			end = config.End
		}
	}
	state.Summary.Finish(end)
	return nil
}
