package engineobs

import (
	"context"
	"time"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/trace"
	"weekly-basket-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Tick(ctx context.Context, rc store.Runtime) (*types.TickResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Tick")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting tick",
		"bot_id", rc.BotID,
		"trading_enabled", rc.TradingEnabled,
	)

	result, err := oe.engine.Tick(ctx, rc)
	metrics.ObserveTick(result, time.Since(start), err)
	if err != nil {
		fields := []any{"bot_id", rc.BotID, "duration_ms", time.Since(start).Milliseconds()}
		if result != nil {
			fields = append(fields, "week_id", result.WeekID, "phase", result.Phase, "reason", result.Reason)
		}
		logger.ErrorWithErrSkip(ctx, 1, "Tick failed", err, fields...)
		return result, err
	}

	logger.InfoSkip(ctx, 1, "Tick completed",
		"bot_id", rc.BotID,
		"week_id", result.WeekID,
		"phase", result.Phase,
		"placed", result.Placed,
		"pending", result.Pending,
		"skipped", result.Skipped,
		"entered", result.Entered,
		"trail_hit", result.TrailHit,
		"reason", result.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
