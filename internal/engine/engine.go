package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/tradelog"
	"weekly-basket-bot/internal/types"
	"weekly-basket-bot/internal/week"
)

// Engine runs the weekly basket state machine. One Tick at a time; the
// scheduler guarantees that.
type Engine struct {
	broker    interfaces.Broker
	feed      interfaces.SignalFeed
	sizer     interfaces.PositionSizer
	states    interfaces.StateStore
	telemetry interfaces.TelemetrySink
	journal   *tradelog.Journal

	now        func() time.Time
	pace       func(ctx context.Context) error
	wipePolicy retry.Policy
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(d Deps, opts ...Option) *Engine {
	e := &Engine{
		broker:     d.Broker,
		feed:       d.Feed,
		sizer:      d.Sizer,
		states:     d.States,
		telemetry:  d.Telemetry,
		journal:    d.Journal,
		now:        time.Now,
		pace:       rate.NewLimiter(rate.Every(DefaultCallSpacing), 1).Wait,
		wipePolicy: retry.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick runs one pass: rollover, equity refresh, window check, reconciliation,
// entry, trailing stop and persistence, in that order.
//
// A failure on the entry path (signals, sizing, orders) does not stop the
// trailing stop from being evaluated or the state from being saved; the
// error is returned after both.
func (e *Engine) Tick(ctx context.Context, rc store.Runtime) (*types.TickResult, error) {
	started := e.now()
	now := started.UTC()
	win := week.Current(now)
	weekID := win.ID()
	res := &types.TickResult{Now: now, WeekID: weekID}
	defer func() { res.DurationMS = e.now().Sub(started).Milliseconds() }()

	st, err := e.states.Load(ctx, rc.BotID)
	if err != nil {
		return res, fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		st = &types.BotState{}
	}
	if st.WeekID == nil || *st.WeekID != weekID {
		logger.Decision(ctx, weekID, "RESET", "new trading week", "previous_week", deref(st.WeekID))
		st.ResetForWeek(weekID)
	}

	summary, err := e.broker.AccountSummary(ctx)
	if err != nil {
		return res, fmt.Errorf("account summary: %w", err)
	}
	nav := summary.NAV
	st.CurrentEquity = &nav
	metrics.Equity.Set(nav)

	trades, err := e.broker.OpenTrades(ctx)
	if err != nil {
		return res, fmt.Errorf("open trades: %w", err)
	}
	e.pushTelemetry(ctx, rc, summary, trades)

	if !win.Tradable(now) {
		res.Phase = types.PhaseWaiting
		res.Reason = "outside trading window"
		var wipeErr error
		if len(trades) > 0 {
			logger.Decision(ctx, weekID, "FLATTEN", res.Reason, "open_trades", len(trades))
			if wipeErr = e.wipe(ctx, weekID, wipeWindow); wipeErr == nil {
				res.ClosedAll = true
				st.Entered = false
			} else {
				res.Phase = types.PhaseClosing
			}
		}
		return res, errors.Join(wipeErr, e.save(ctx, rc.BotID, st))
	}

	managed, unmanaged := partition(trades, rc.TagPrefix)
	if len(unmanaged) > 0 {
		logger.Risk(ctx, "account", "UNMANAGED_EXPOSURE",
			"unmanaged", len(unmanaged), "managed", len(managed), "first_trade", unmanaged[0].ID)
		if err := e.wipe(ctx, weekID, wipeUnmanaged); err != nil {
			res.Phase = types.PhaseClosing
			return res, errors.Join(err, e.save(ctx, rc.BotID, st))
		}
		res.ClosedAll = true
		managed, trades = nil, nil
	} else {
		managed = e.closeDuplicates(ctx, weekID, managed)
	}

	if st.Entered && len(trades) == 0 {
		logger.Decision(ctx, weekID, "RESET_ENTERED", "broker reports no open trades")
		st.Entered = false
	}

	var entryErr error
	if st.TrailHitAt == nil {
		managed, entryErr = e.enter(ctx, rc, st, weekID, managed, res)
	} else {
		res.Reason = "trailing stop already hit this week"
	}
	res.Entered = st.Entered

	var exitErr error
	if st.Entered && st.EntryEquity != nil {
		out := UpdateTrailing(st, nav, rc.TrailStartPct, rc.TrailOffsetPct)
		res.ProfitPct = &out.ProfitPct
		res.LockedPct = st.LockedPct
		if out.Hit {
			if exitErr = e.trailExit(ctx, st, weekID, out, res); exitErr == nil {
				managed = nil
			}
		}
	}

	if st.TrailHitAt != nil && len(managed) > 0 {
		logger.Decision(ctx, weekID, "FLATTEN", "trades open after trailing stop", "open_trades", len(managed))
		if err := e.wipe(ctx, weekID, wipeAfterTrail); err != nil {
			exitErr = errors.Join(exitErr, err)
		} else {
			res.ClosedAll = true
			managed = nil
		}
	}

	res.Phase = phaseFor(st, len(managed))
	if exitErr != nil {
		res.Phase = types.PhaseClosing
	}
	return res, errors.Join(entryErr, exitErr, e.save(ctx, rc.BotID, st))
}

// enter runs the entry path and returns the managed trades known afterwards.
func (e *Engine) enter(ctx context.Context, rc store.Runtime, st *types.BotState, weekID string, managed []managedTrade, res *types.TickResult) ([]managedTrade, error) {
	batch, err := e.feed.Latest(ctx)
	if err != nil {
		res.Reason = "signals unavailable"
		return managed, err
	}

	sized, err := e.sizer.BuildPlan(ctx, batch.Pairs, rc.MarginBuffer)
	if err != nil {
		res.Reason = "sizing failed"
		if !errors.Is(err, types.ErrSizing) {
			err = fmt.Errorf("%w: %v", types.ErrSizing, err)
		}
		return managed, err
	}
	if plan, bad := taggable(sized.Plan, rc.TagPrefix); len(bad) > 0 {
		logger.Decision(ctx, weekID, "SKIP", "legs cannot be tagged", "legs", len(bad), "first", bad[0].Reason)
		cp := *sized
		cp.Plan = plan
		cp.Skipped = append(append([]types.SkippedLeg(nil), sized.Skipped...), bad...)
		sized = &cp
	}
	res.Planned = len(sized.Plan)
	res.Skipped = len(sized.Skipped)
	metrics.SizingScale.Set(sized.Scale)
	if len(sized.Plan) == 0 {
		res.Reason = "empty plan"
		return managed, fmt.Errorf("%w: %d signals, %d skipped", types.ErrEmptyPlan, len(batch.Pairs), len(sized.Skipped))
	}
	if rc.LogPlan || logger.IsDebugEnabled() {
		logPlan(ctx, weekID, sized)
	}

	missing := missingLegs(sized.Plan, openLegs(managed))
	res.Pending = len(missing) + len(sized.Skipped)

	if !rc.TradingEnabled {
		res.Reason = "trading disabled"
		logger.Decision(ctx, weekID, "SKIP", res.Reason, "missing_legs", len(missing), "planned", len(sized.Plan))
		return managed, nil
	}

	placed, failed, orderErr := e.submit(ctx, rc.TagPrefix, weekID, hedgeOrder(missing))
	res.Placed, res.Failed = placed, failed

	if placed > 0 {
		after, err := e.broker.OpenTrades(ctx)
		if err != nil {
			return managed, errors.Join(orderErr, fmt.Errorf("open trades after submit: %w", err))
		}
		m, _ := partition(after, rc.TagPrefix)
		if err := verifyTagging(ctx, placed, after, m); err != nil {
			res.Pending = len(sized.Plan) + len(sized.Skipped)
			res.Reason = "fail closed"
			st.Entered = false
			if wipeErr := e.wipe(ctx, weekID, wipeFailClosed); wipeErr != nil {
				return m, errors.Join(err, wipeErr)
			}
			res.ClosedAll = true
			return nil, errors.Join(orderErr, err)
		}
		managed = m
	}

	res.Pending = len(missingLegs(sized.Plan, openLegs(managed))) + len(sized.Skipped)
	if res.Pending == 0 && orderErr == nil {
		if !st.Entered {
			logger.Decision(ctx, weekID, "ENTERED", "all legs open", "legs", len(sized.Plan))
			t := e.now().UTC()
			st.EntryTimeUTC = &t
		}
		st.Entered = true
		if st.EntryEquity == nil {
			entry := *st.CurrentEquity
			st.EntryEquity = &entry
			peak := entry
			st.PeakEquity = &peak
		}
	}
	return managed, orderErr
}

func (e *Engine) trailExit(ctx context.Context, st *types.BotState, weekID string, out TrailOutcome, res *types.TickResult) error {
	logger.Risk(ctx, "basket", "TRAILING_STOP_HIT",
		"profit_pct", out.ProfitPct, "locked_pct", deref(st.LockedPct), "peak_pct", out.PeakPct)
	if e.journal != nil {
		_ = e.journal.TrailHit(weekID, out.ProfitPct, deref(st.LockedPct))
	}
	if err := e.wipe(ctx, weekID, wipeTrailing); err != nil {
		return err
	}
	metrics.TrailingHits.Inc()
	hitAt := e.now().UTC()
	st.TrailHitAt = &hitAt
	st.Entered = false
	res.TrailHit = true
	res.ClosedAll = true
	res.Entered = false
	return nil
}

func (e *Engine) pushTelemetry(ctx context.Context, rc store.Runtime, summary types.AccountSummary, trades []types.Trade) {
	if e.telemetry == nil || rc.AccountKey == "" {
		return
	}
	t := types.Telemetry{
		Equity:        summary.NAV,
		Currency:      summary.Currency,
		OpenPositions: len(trades),
		FetchedAt:     e.now().UTC(),
	}
	for _, tr := range trades {
		t.Positions = append(t.Positions, types.PositionSnapshot{
			Instrument:   tr.Instrument,
			Units:        tr.CurrentUnits,
			UnrealizedPL: tr.UnrealizedPL,
			Tag:          tr.Tag,
		})
	}
	if err := e.telemetry.Push(ctx, rc.AccountKey, t); err != nil {
		logger.Warn(ctx, "Telemetry push failed", "account_key", rc.AccountKey, "error", err)
	}
}

func (e *Engine) save(ctx context.Context, botID string, st *types.BotState) error {
	if err := e.states.Save(ctx, botID, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func phaseFor(st *types.BotState, open int) types.Phase {
	switch {
	case st.TrailHitAt != nil && open > 0:
		return types.PhaseClosing
	case st.TrailHitAt != nil:
		return types.PhaseWaiting
	case st.Entered:
		return types.PhaseHolding
	default:
		return types.PhaseEntering
	}
}

func logPlan(ctx context.Context, weekID string, sized *types.SizingResult) {
	logger.Info(ctx, "Sizing plan",
		"week_id", weekID,
		"path", sized.Path,
		"nav", sized.NAV,
		"margin_available", sized.MarginAvailable,
		"total_margin", sized.TotalMargin,
		"scale", sized.Scale,
		"legs", len(sized.Plan),
		"skipped", len(sized.Skipped),
	)
	for _, row := range sized.Plan {
		logger.Info(ctx, "Plan leg",
			"symbol", row.Symbol,
			"instrument", row.Instrument,
			"model", row.Model,
			"direction", row.Direction,
			"units", row.Units,
			"raw_units", row.RawUnits,
		)
	}
	for _, s := range sized.Skipped {
		logger.Info(ctx, "Plan skip", "symbol", s.Symbol, "model", s.Model, "reason", s.Reason)
	}
}
