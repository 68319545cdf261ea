package interfaces

import (
	"context"

	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/types"
)

type Engine interface {
	Tick(ctx context.Context, rc store.Runtime) (*types.TickResult, error)
}
