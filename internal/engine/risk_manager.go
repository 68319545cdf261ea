package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/types"
)

// Wipe reasons, also used as metric labels.
const (
	wipeWindow     = "window_closed"
	wipeUnmanaged  = "unmanaged_exposure"
	wipeFailClosed = "fail_closed"
	wipeTrailing   = "trailing_stop"
	wipeAfterTrail = "after_trailing_stop"
)

// verifyTagging fails when orders went through but none of the account's
// open trades carries a managed tag.
func verifyTagging(ctx context.Context, placed int, open []types.Trade, managed []managedTrade) error {
	if placed == 0 || len(open) == 0 || len(managed) > 0 {
		return nil
	}
	logger.Risk(ctx, "account", "FAIL_CLOSED", "placed", placed, "open_trades", len(open))
	return fmt.Errorf("%w: %d orders placed, none of %d open trades is tagged", types.ErrTaggingIntegrity, placed, len(open))
}

// wipe closes every open trade on the account. Each sweep (bounded by the
// wipe policy) closes per instrument, and a last per-trade pass follows when
// the sweeps did not finish the job. Trades still open afterwards are a
// types.ErrReconciliation.
func (e *Engine) wipe(ctx context.Context, weekID, reason string) (err error) {
	op := logger.StartOperation(ctx, "engine.wipe", "week_id", weekID, "reason", reason)
	ctx = op.GetContext()
	closed := 0
	var remaining []types.Trade
	defer func() {
		if err != nil {
			op.EndWithError(err, "closed", closed, "remaining", len(remaining))
			return
		}
		op.End("closed", closed)
	}()

	sweepErr := e.wipePolicy.Do(ctx, func(ctx context.Context, attempt int) error {
		trades, err := e.broker.OpenTrades(ctx)
		if err != nil {
			return err
		}
		if len(trades) == 0 {
			remaining = nil
			return nil
		}
		closed += e.sweep(ctx, weekID, reason, trades)

		left, err := e.broker.OpenTrades(ctx)
		if err != nil {
			return err
		}
		remaining = left
		if len(left) > 0 {
			return fmt.Errorf("%d trades still open after sweep %d", len(left), attempt)
		}
		return nil
	})

	if sweepErr != nil {
		logger.Warn(ctx, "Wipe sweeps exhausted, closing trade by trade", "reason", reason, "error", sweepErr)
		if trades, lerr := e.broker.OpenTrades(ctx); lerr == nil {
			for _, tr := range trades {
				if e.closeTrade(ctx, weekID, reason, tr) == nil {
					closed++
				}
			}
		}
		left, lerr := e.broker.OpenTrades(ctx)
		if lerr != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrReconciliation, reason, errors.Join(sweepErr, lerr))
		}
		remaining = left
	}

	metrics.WipesTotal.WithLabelValues(reason).Inc()
	if e.journal != nil {
		_ = e.journal.Wipe(weekID, reason, closed, len(remaining))
	}
	logger.Risk(ctx, "account", "WIPE", "reason", reason, "closed", closed, "remaining", len(remaining))

	if len(remaining) > 0 {
		return fmt.Errorf("%w: %s: %d trades still open", types.ErrReconciliation, reason, len(remaining))
	}
	return nil
}

// sweep closes each instrument with one position close, falling back to
// per-trade closes for that instrument when the position close fails.
func (e *Engine) sweep(ctx context.Context, weekID, reason string, trades []types.Trade) int {
	byInstrument := make(map[string][]types.Trade)
	for _, tr := range trades {
		byInstrument[tr.Instrument] = append(byInstrument[tr.Instrument], tr)
	}
	instruments := make([]string, 0, len(byInstrument))
	for inst := range byInstrument {
		instruments = append(instruments, inst)
	}
	sort.Strings(instruments)

	closed := 0
	for _, inst := range instruments {
		legs := byInstrument[inst]
		if err := e.pace(ctx); err != nil {
			return closed
		}
		side := closeSide(legs)
		err := e.broker.ClosePosition(ctx, inst, side)
		if e.journal != nil {
			_ = e.journal.Closed(weekID, inst, "", reason+" position "+string(side), err)
		}
		if err == nil {
			closed += len(legs)
			continue
		}

		logger.Warn(ctx, "Position close failed, closing trades", "instrument", inst, "side", side, "error", err)
		for _, tr := range legs {
			if e.closeTrade(ctx, weekID, reason, tr) == nil {
				closed++
			}
		}
	}
	return closed
}

func (e *Engine) closeTrade(ctx context.Context, weekID, reason string, tr types.Trade) error {
	if err := e.pace(ctx); err != nil {
		return err
	}
	err := e.broker.CloseTrade(ctx, tr.ID)
	if e.journal != nil {
		_ = e.journal.Closed(weekID, tr.Instrument, tr.ID, reason, err)
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Trade close failed", err, "trade_id", tr.ID, "instrument", tr.Instrument)
	}
	return err
}

// closeSide picks BOTH only when the instrument holds both hedge sides.
func closeSide(legs []types.Trade) types.CloseSide {
	var long, short bool
	for _, tr := range legs {
		if tr.CurrentUnits < 0 {
			short = true
		} else {
			long = true
		}
	}
	switch {
	case long && short:
		return types.CloseBoth
	case short:
		return types.CloseShort
	default:
		return types.CloseLong
	}
}
