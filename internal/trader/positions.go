package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/broker"
	"jax-research-platform/internal/core"
)

func (t *Basic) openLongPosition(ctx context.Context, state *BasicState, candle core.Candle) error {
	config := state.Config

	var position core.OpenLong
	if config.Mode == core.TradingModeBacktest {
		sim, err := t.simulatorFor(config)
		if err != nil {
			return err
		}
		position = sim.OpenLong(config.Symbol, candle.Time+config.Interval, candle.Close, state.Quote)
	} else {
		if t.liveBroker == nil {
			return fmt.Errorf("trader: open long: no broker wired for %s mode", config.Mode)
		}
		fills, err := t.liveBroker.Buy(ctx, config.Exchange, config.Symbol, state.Quote)
		if err != nil {
			return fmt.Errorf("trader: open long: %w", err)
		}
		position = core.OpenLong{Symbol: config.Symbol, Time: candle.Time + config.Interval, Fills: fills}
	}

	state.Quote = state.Quote.Sub(position.Cost())
	state.OpenPosition = OpenPosition{Long: &position}

	t.events.publish(ctx, Event{Kind: EventPositionsOpened, OpenedPosition: &state.OpenPosition})
	return nil
}

func (t *Basic) closeLongPosition(
	ctx context.Context, state *BasicState, candle core.Candle, reason core.CloseReason,
) (core.Long, error) {
	config := state.Config
	open := *state.OpenPosition.Long

	var closed core.Long
	if config.Mode == core.TradingModeBacktest {
		sim, err := t.simulatorFor(config)
		if err != nil {
			return core.Long{}, err
		}
		closed = sim.CloseLong(open, candle.Time+config.Interval, candle.Close, reason)
	} else {
		if t.liveBroker == nil {
			return core.Long{}, fmt.Errorf("trader: close long: no broker wired for %s mode", config.Mode)
		}
		fills, err := t.liveBroker.Sell(ctx, config.Exchange, config.Symbol, open.BaseGain())
		if err != nil {
			return core.Long{}, fmt.Errorf("trader: close long: %w", err)
		}
		closed = open.Close(reason, candle.Time+config.Interval, fills)
	}

	state.Quote = state.Quote.Add(closed.Gain())
	state.OpenPosition = OpenPosition{}
	state.Summary.AppendLongPosition(closed)

	t.events.publish(ctx, Event{Kind: EventPositionsClosed, ClosedLong: &closed, Summary: state.Summary})
	return closed, nil
}

func (t *Basic) openShortPosition(ctx context.Context, state *BasicState, candle core.Candle) error {
	config := state.Config

	var position core.OpenShort
	if config.Mode == core.TradingModeBacktest {
		sim, err := t.simulatorFor(config)
		if err != nil {
			return err
		}
		multiplier, err := t.informant.GetMarginMultiplier(config.Exchange)
		if err != nil {
			return fmt.Errorf("trader: open short: %w", err)
		}
		position = sim.OpenShort(config.Symbol, candle.Time+config.Interval, candle.Close, state.Quote, multiplier)
	} else {
		if t.liveBroker == nil {
			return fmt.Errorf("trader: open short: no broker wired for %s mode", config.Mode)
		}
		multiplier, err := t.informant.GetMarginMultiplier(config.Exchange)
		if err != nil {
			return fmt.Errorf("trader: open short: %w", err)
		}
		tickers, err := t.informant.MapTickers(config.Exchange)
		if err != nil {
			return fmt.Errorf("trader: open short: %w", err)
		}
		price, ok := tickers[config.Symbol]
		if !ok {
			return fmt.Errorf("trader: open short: no ticker for %s", config.Symbol)
		}
		leverage := decimal.NewFromInt(int64(multiplier - 1))
		size := state.Quote.Mul(leverage).Div(price)
		fills, borrowed, err := t.liveBroker.BuyMargin(ctx, config.Exchange, config.Symbol, size)
		if err != nil {
			return fmt.Errorf("trader: open short: %w", err)
		}
		position = core.OpenShort{
			Symbol: config.Symbol, Collateral: state.Quote, Borrowed: borrowed,
			Time: candle.Time + config.Interval, Fills: fills,
		}
	}

	state.Quote = state.Quote.Sub(position.Cost())
	state.OpenPosition = OpenPosition{Short: &position}

	t.events.publish(ctx, Event{Kind: EventPositionsOpened, OpenedPosition: &state.OpenPosition})
	return nil
}

func (t *Basic) closeShortPosition(
	ctx context.Context, state *BasicState, candle core.Candle, reason core.CloseReason,
) (core.Short, error) {
	config := state.Config
	open := *state.OpenPosition.Short
	baseAsset := config.BaseAsset()

	var closed core.Short
	if config.Mode == core.TradingModeBacktest {
		sim, err := t.simulatorFor(config)
		if err != nil {
			return core.Short{}, err
		}
		borrowInfo, err := t.informant.GetBorrowInfo(config.Exchange, baseAsset)
		if err != nil {
			return core.Short{}, fmt.Errorf("trader: close short: %w", err)
		}
		closed = sim.CloseShort(open, candle.Time+config.Interval, candle.Close, borrowInfo.DailyInterestRate, reason)
	} else {
		if t.liveBroker == nil {
			return core.Short{}, fmt.Errorf("trader: close short: no broker wired for %s mode", config.Mode)
		}
		fills, err := t.liveBroker.SellMargin(ctx, config.Exchange, config.Symbol, open.BaseGain())
		if err != nil {
			return core.Short{}, fmt.Errorf("trader: close short: %w", err)
		}
		closed = open.Close(reason, decimal.Zero, candle.Time+config.Interval, fills)
	}

	state.Quote = state.Quote.Add(closed.Gain())
	state.OpenPosition = OpenPosition{}
	state.Summary.AppendShortPosition(closed)

	t.events.publish(ctx, Event{Kind: EventPositionsClosed, ClosedShort: &closed, Summary: state.Summary})
	return closed, nil
}

func (t *Basic) simulatorFor(config BasicConfig) (*broker.Simulator, error) {
	fees, filters, err := t.informant.GetFeesFilters(config.Exchange, config.Symbol)
	if err != nil {
		return nil, fmt.Errorf("trader: simulator: %w", err)
	}
	return broker.NewSimulator(fees, filters), nil
}
