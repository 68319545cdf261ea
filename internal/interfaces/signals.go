package interfaces

import (
	"context"

	"weekly-basket-bot/internal/types"
)

// SignalFeed returns the current week's basket. A batch that does not allow
// trading is returned together with types.ErrTradingNotAllowed.
type SignalFeed interface {
	Latest(ctx context.Context) (*types.SignalBatch, error)
}

type PositionSizer interface {
	BuildPlan(ctx context.Context, signals []types.BasketSignal, marginBuffer float64) (*types.SizingResult, error)
}

// AccountSizer is an external service that sizes symbols for the linked account.
type AccountSizer interface {
	SizingRows(ctx context.Context, symbols []string) (*types.AccountSizing, error)
}
