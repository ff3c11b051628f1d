package broker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
)

// ExchangeBroker places market orders through an exchange.Exchange and takes
// the fills from the OrderUpdate that PlaceOrder returns. It does not read
// the exchange's order-updates stream; an order that PlaceOrder does not
// report as filled is returned as an error. It implements Broker for
// TradingModePaper/TradingModeLive.
type ExchangeBroker struct {
	exchanges map[string]exchange.Exchange
}

// NewExchangeBroker builds an ExchangeBroker over exchanges, indexed by
// Name().
func NewExchangeBroker(exchanges []exchange.Exchange) *ExchangeBroker {
	byName := make(map[string]exchange.Exchange, len(exchanges))
	for _, ex := range exchanges {
		byName[ex.Name()] = ex
	}
	return &ExchangeBroker{exchanges: byName}
}

func (b *ExchangeBroker) get(exchangeName string) (exchange.Exchange, error) {
	ex, ok := b.exchanges[exchangeName]
	if !ok {
		return nil, fmt.Errorf("broker: unknown exchange %q", exchangeName)
	}
	return ex, nil
}

func (b *ExchangeBroker) placeMarket(
	ctx context.Context, exchangeName, symbol string, side exchange.Side, size decimal.Decimal,
) ([]core.Fill, error) {
	ex, err := b.get(exchangeName)
	if err != nil {
		return nil, err
	}
	update, err := ex.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol: symbol,
		Side:   side,
		Type:   exchange.OrderTypeMarket,
		Size:   size,
	})
	if err != nil {
		return nil, err
	}
	// A market order is expected to fill immediately; anything left
	// unfilled is a venue-side ordering failure the trader aborts on,
	// rather than something worth polling for.
	if update.Status != exchange.OrderStatusFilled || update.Fill == nil {
		return nil, fmt.Errorf("broker: %w: order %s left in status %v", core.ErrOrder, update.OrderID, update.Status)
	}
	return []core.Fill{*update.Fill}, nil
}

// Buy spends quote of the quote asset buying symbol at market.
func (b *ExchangeBroker) Buy(ctx context.Context, exchangeName, symbol string, quote decimal.Decimal) ([]core.Fill, error) {
	return b.placeMarket(ctx, exchangeName, symbol, exchange.SideBuy, quote)
}

// Sell sells size of the base asset of symbol at market.
func (b *ExchangeBroker) Sell(ctx context.Context, exchangeName, symbol string, size decimal.Decimal) ([]core.Fill, error) {
	return b.placeMarket(ctx, exchangeName, symbol, exchange.SideSell, size)
}

// BuyMargin borrows and sells size of the base asset short.
func (b *ExchangeBroker) BuyMargin(
	ctx context.Context, exchangeName, symbol string, size decimal.Decimal,
) ([]core.Fill, decimal.Decimal, error) {
	ex, err := b.get(exchangeName)
	if err != nil {
		return nil, decimal.Zero, err
	}
	baseAsset, _ := core.UnpackSymbol(symbol)
	if err := ex.BorrowMargin(ctx, baseAsset, size); err != nil {
		return nil, decimal.Zero, err
	}
	fills, err := b.placeMarket(ctx, exchangeName, symbol, exchange.SideSell, size)
	return fills, size, err
}

// SellMargin buys back size of the base asset to close a short.
func (b *ExchangeBroker) SellMargin(ctx context.Context, exchangeName, symbol string, size decimal.Decimal) ([]core.Fill, error) {
	return b.placeMarket(ctx, exchangeName, symbol, exchange.SideBuy, size)
}
