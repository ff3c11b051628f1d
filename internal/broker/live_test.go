package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/exchange"
)

type stubExchange struct {
	exchange.Exchange
	name       string
	nextStatus exchange.OrderStatus
	nextFill   *core.Fill
	placeErr   error
	borrowErr  error
}

func (s *stubExchange) Name() string { return s.name }

func (s *stubExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderUpdate, error) {
	if s.placeErr != nil {
		return exchange.OrderUpdate{}, s.placeErr
	}
	return exchange.OrderUpdate{OrderID: "1", Symbol: req.Symbol, Status: s.nextStatus, Fill: s.nextFill}, nil
}

func (s *stubExchange) BorrowMargin(ctx context.Context, asset string, amount interface{ String() string }) error {
	return s.borrowErr
}

func TestExchangeBroker_Buy_ReturnsFillOnSuccess(t *testing.T) {
	fill := &core.Fill{Price: decimal.NewFromInt(10), Size: decimal.NewFromInt(1)}
	ex := &stubExchange{name: "binance", nextStatus: exchange.OrderStatusFilled, nextFill: fill}
	b := NewExchangeBroker([]exchange.Exchange{ex})

	fills, err := b.Buy(context.Background(), "binance", "eth-usdt", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Price.Equal(decimal.NewFromInt(10)))
}

func TestExchangeBroker_Buy_ErrorsWhenNotFilled(t *testing.T) {
	ex := &stubExchange{name: "binance", nextStatus: exchange.OrderStatusRejected}
	b := NewExchangeBroker([]exchange.Exchange{ex})

	_, err := b.Buy(context.Background(), "binance", "eth-usdt", decimal.NewFromInt(10))
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrOrder))
}

func TestExchangeBroker_UnknownExchange(t *testing.T) {
	b := NewExchangeBroker(nil)
	_, err := b.Sell(context.Background(), "missing", "eth-usdt", decimal.NewFromInt(1))
	require.Error(t, err)
}

func TestExchangeBroker_BuyMargin_BorrowsThenSells(t *testing.T) {
	fill := &core.Fill{Price: decimal.NewFromInt(10), Size: decimal.NewFromInt(1)}
	ex := &stubExchange{name: "binance", nextStatus: exchange.OrderStatusFilled, nextFill: fill}
	b := NewExchangeBroker([]exchange.Exchange{ex})

	fills, borrowed, err := b.BuyMargin(context.Background(), "binance", "eth-usdt", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, borrowed.Equal(decimal.NewFromInt(1)))
}

func TestExchangeBroker_BuyMargin_PropagatesBorrowError(t *testing.T) {
	ex := &stubExchange{name: "binance", borrowErr: errors.New("insufficient collateral")}
	b := NewExchangeBroker([]exchange.Exchange{ex})

	_, _, err := b.BuyMargin(context.Background(), "binance", "eth-usdt", decimal.NewFromInt(1))
	require.Error(t, err)
}
