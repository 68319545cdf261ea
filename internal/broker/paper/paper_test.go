package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-basket-bot/internal/types"
)

func newTestBroker() *Broker {
	return New(Config{
		Balance: 10000,
		Instruments: []InstrumentConfig{
			{Name: "EUR_USD", Bid: 1.0999, Ask: 1.1001, MarginRate: 0.05},
			{Name: "USD_JPY", Bid: 149.99, Ask: 150.01, MarginRate: 0.04},
		},
	})
}

func TestHedgedOrdersOpenSeparateTrades(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker()

	_, err := b.PlaceMarketOrder(ctx, types.OrderReq{Instrument: "EUR_USD", Units: 1000, Tag: "a", PositionFill: types.OpenOnly})
	require.NoError(t, err)
	_, err = b.PlaceMarketOrder(ctx, types.OrderReq{Instrument: "EUR_USD", Units: -1000, Tag: "b", PositionFill: types.OpenOnly})
	require.NoError(t, err)

	trades, err := b.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, types.Long, trades[0].Direction())
	assert.Equal(t, types.Short, trades[1].Direction())

	require.NoError(t, b.ClosePosition(ctx, "EUR_USD", types.CloseShort))
	trades, _ = b.OpenTrades(ctx)
	require.Len(t, trades, 1)
	assert.Equal(t, "a", trades[0].Tag)
}

func TestPriceMoveChangesNAV(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker()
	_, err := b.PlaceMarketOrder(ctx, types.OrderReq{Instrument: "EUR_USD", Units: 10000, Tag: "a"})
	require.NoError(t, err)

	b.SetPrice("EUR_USD", 1.1099, 1.1101)
	sum, err := b.AccountSummary(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10100, sum.NAV, 1e-6)

	trades, _ := b.OpenTrades(ctx)
	require.NoError(t, b.CloseTrade(ctx, trades[0].ID))
	sum, _ = b.AccountSummary(ctx)
	assert.InDelta(t, 10100, sum.Balance, 1e-6)
	assert.Equal(t, 0, sum.OpenTradeCount)
}

func TestMarginIsEnforced(t *testing.T) {
	b := newTestBroker()
	// 1,000,000 EUR at 5% needs 55,000 USD of margin
	_, err := b.PlaceMarketOrder(context.Background(), types.OrderReq{Instrument: "EUR_USD", Units: 1000000})
	assert.ErrorIs(t, err, types.ErrOrder)
}

func TestFaults(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker()
	b.SetFaults(Faults{RejectOrdersAfter: 1, DropTags: true})

	_, err := b.PlaceMarketOrder(ctx, types.OrderReq{Instrument: "EUR_USD", Units: 100, Tag: "x"})
	require.NoError(t, err)
	_, err = b.PlaceMarketOrder(ctx, types.OrderReq{Instrument: "USD_JPY", Units: 100, Tag: "y"})
	assert.ErrorIs(t, err, types.ErrOrder)

	trades, _ := b.OpenTrades(ctx)
	require.Len(t, trades, 1)
	assert.Empty(t, trades[0].Tag)

	b.SetFaults(Faults{FailClosePosition: true, StuckTrades: map[string]bool{trades[0].ID: true}})
	assert.Error(t, b.ClosePosition(ctx, "EUR_USD", types.CloseBoth))
	assert.Error(t, b.CloseTrade(ctx, trades[0].ID))

	orders, closes := b.Calls()
	assert.Equal(t, 2, orders)
	assert.Equal(t, 2, closes)
}
