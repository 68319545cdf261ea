package interfaces

import (
	"context"

	"weekly-basket-bot/internal/types"
)

// StateStore persists one BotState per bot id. Load returns nil, nil when
// nothing has been saved yet.
type StateStore interface {
	Load(ctx context.Context, botID string) (*types.BotState, error)
	Save(ctx context.Context, botID string, st *types.BotState) error
}

type TelemetrySink interface {
	Push(ctx context.Context, accountKey string, t types.Telemetry) error
}
