package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/tag"
	"weekly-basket-bot/internal/types"
)

// hedgeOrder groups legs by symbol and alternates LONG and SHORT within each
// symbol.
// Symbols keep their first-seen order; within a side, legs are sorted by model.
func hedgeOrder(legs []types.SizingPlanRow) []types.SizingPlanRow {
	var symbols []string
	longs := make(map[string][]types.SizingPlanRow)
	shorts := make(map[string][]types.SizingPlanRow)
	for _, leg := range legs {
		sym := types.NormalizeSymbol(leg.Symbol)
		if _, ok := longs[sym]; !ok {
			if _, ok := shorts[sym]; !ok {
				symbols = append(symbols, sym)
			}
		}
		if leg.Direction == types.Short {
			shorts[sym] = append(shorts[sym], leg)
		} else {
			longs[sym] = append(longs[sym], leg)
		}
	}

	out := make([]types.SizingPlanRow, 0, len(legs))
	for _, sym := range symbols {
		l, s := byModel(longs[sym]), byModel(shorts[sym])
		for i := 0; i < len(l) || i < len(s); i++ {
			if i < len(l) {
				out = append(out, l[i])
			}
			if i < len(s) {
				out = append(out, s[i])
			}
		}
	}
	return out
}

func byModel(legs []types.SizingPlanRow) []types.SizingPlanRow {
	sort.SliceStable(legs, func(i, j int) bool { return legs[i].Model < legs[j].Model })
	return legs
}

// taggable splits the plan into legs that can carry a trade tag under prefix
// and skipped legs that never can.
func taggable(plan []types.SizingPlanRow, prefix string) (kept []types.SizingPlanRow, skipped []types.SkippedLeg) {
	for _, row := range plan {
		if err := tag.Check(prefix, row.Symbol, row.Model); err != nil {
			skipped = append(skipped, types.SkippedLeg{Symbol: row.Symbol, Model: row.Model, Reason: err.Error()})
			continue
		}
		kept = append(kept, row)
	}
	return kept, skipped
}

// submit places legs in order and stops at the first failure.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - prefix: Tag prefix identifying this bot's trades
//   - weekID: Current week, for the journal
//   - legs: Legs to open, already hedge ordered
//
// Returns:
//   - placed: Orders the broker accepted
//   - failed: 1 when a leg failed, else 0
//   - err: The failing leg's error, wrapping types.ErrOrder
func (e *Engine) submit(ctx context.Context, prefix, weekID string, legs []types.SizingPlanRow) (placed, failed int, err error) {
	for _, leg := range legs {
		t, err := tag.New(prefix, leg.Symbol, leg.Model)
		if err != nil {
			return placed, 1, fmt.Errorf("%w: %s/%s: %v", types.ErrOrder, leg.Symbol, leg.Model, err)
		}
		if err := e.pace(ctx); err != nil {
			return placed, failed, err
		}

		units := leg.Units * leg.Direction.Sign()
		req := types.OrderReq{
			Instrument:   leg.Instrument,
			Units:        units,
			Tag:          t.Encode(),
			PositionFill: types.OpenOnly,
		}
		resp, err := e.broker.PlaceMarketOrder(ctx, req)
		metrics.ObserveOrder(leg.Model, leg.Direction, err)
		if e.journal != nil {
			_ = e.journal.Order(weekID, leg.Instrument, req.Tag, units, resp.OrderID, err)
		}
		if err != nil {
			logger.ErrorWithErr(ctx, "Order failed, stopping submission", err,
				"symbol", leg.Symbol,
				"model", leg.Model,
				"direction", leg.Direction,
				"units", units,
				"remaining", len(legs)-placed-1,
			)
			if !errors.Is(err, types.ErrOrder) {
				err = fmt.Errorf("%w: %s: %v", types.ErrOrder, leg.Instrument, err)
			}
			return placed, 1, err
		}

		placed++
		logger.Trade(ctx, leg.Instrument, units, req.Tag, resp.OrderID,
			"symbol", leg.Symbol,
			"model", leg.Model,
			"direction", leg.Direction,
			"price", resp.Price,
		)
	}
	return placed, 0, nil
}
