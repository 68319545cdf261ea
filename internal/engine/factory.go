package engine

import (
	"context"
	"time"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/tradelog"
)

// DefaultCallSpacing separates consecutive order and close calls.
const DefaultCallSpacing = 150 * time.Millisecond

// Deps are the engine's collaborators. Telemetry and Journal are optional.
type Deps struct {
	Broker    interfaces.Broker
	Feed      interfaces.SignalFeed
	Sizer     interfaces.PositionSizer
	States    interfaces.StateStore
	Telemetry interfaces.TelemetrySink
	Journal   *tradelog.Journal
}

type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPacer replaces the wait that runs before every order and close call.
func WithPacer(pace func(ctx context.Context) error) Option {
	return func(e *Engine) {
		if pace == nil {
			pace = func(context.Context) error { return nil }
		}
		e.pace = pace
	}
}

// WithWipePolicy sets the sweep count and the backoff between wipe sweeps.
func WithWipePolicy(p retry.Policy) Option {
	return func(e *Engine) { e.wipePolicy = p }
}

func New(d Deps, opts ...Option) interfaces.Engine {
	return newEngine(d, opts...)
}
