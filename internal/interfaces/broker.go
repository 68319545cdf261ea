package interfaces

import (
	"context"

	"weekly-basket-bot/internal/types"
)

// Broker is the capability set the engine needs from a hedging account.
// Every open trade is reported individually, including both sides of a hedge.
type Broker interface {
	AccountSummary(ctx context.Context) (types.AccountSummary, error)
	Instruments(ctx context.Context) ([]types.Instrument, error)
	Pricing(ctx context.Context, instruments []string) ([]types.Price, error)
	OpenTrades(ctx context.Context) ([]types.Trade, error)
	PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	CloseTrade(ctx context.Context, tradeID string) error
	ClosePosition(ctx context.Context, instrument string, side types.CloseSide) error
}
