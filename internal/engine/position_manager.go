package engine

import (
	"context"
	"sort"

	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/tag"
	"weekly-basket-bot/internal/types"
)

// managedTrade is an open trade whose tag decoded to a basket leg.
type managedTrade struct {
	types.Trade
	Key types.LegKey
}

// partition splits open trades into managed (tag decodes with our prefix)
// and unmanaged.
func partition(trades []types.Trade, prefix string) (managed []managedTrade, unmanaged []types.Trade) {
	for _, tr := range trades {
		t, err := tag.Decode(tr.Tag, prefix)
		if err != nil {
			unmanaged = append(unmanaged, tr)
			continue
		}
		managed = append(managed, managedTrade{Trade: tr, Key: t.LegKey(tr.Direction())})
	}
	return managed, unmanaged
}

func openLegs(managed []managedTrade) map[types.LegKey]bool {
	open := make(map[types.LegKey]bool, len(managed))
	for _, m := range managed {
		open[m.Key] = true
	}
	return open
}

// missingLegs returns the plan rows with no open managed trade, in plan order.
func missingLegs(plan []types.SizingPlanRow, open map[types.LegKey]bool) []types.SizingPlanRow {
	var out []types.SizingPlanRow
	seen := make(map[types.LegKey]bool, len(plan))
	for _, row := range plan {
		k := row.Key()
		if open[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// closeDuplicates keeps the oldest trade per LegKey and closes the rest.
// Trades that fail to close are kept in the returned slice.
func (e *Engine) closeDuplicates(ctx context.Context, weekID string, managed []managedTrade) []managedTrade {
	var keys []types.LegKey
	byKey := make(map[types.LegKey][]managedTrade)
	for _, m := range managed {
		if _, ok := byKey[m.Key]; !ok {
			keys = append(keys, m.Key)
		}
		byKey[m.Key] = append(byKey[m.Key], m)
	}

	kept := make([]managedTrade, 0, len(managed))
	for _, k := range keys {
		group := byKey[k]
		sort.SliceStable(group, func(i, j int) bool { return older(group[i], group[j]) })
		kept = append(kept, group[0])

		for _, dup := range group[1:] {
			logger.Risk(ctx, k.String(), "DUPLICATE_LEG", "trade_id", dup.ID, "kept", group[0].ID)
			if err := e.pace(ctx); err != nil {
				kept = append(kept, dup)
				continue
			}
			err := e.broker.CloseTrade(ctx, dup.ID)
			if e.journal != nil {
				_ = e.journal.Closed(weekID, dup.Instrument, dup.ID, "duplicate leg", err)
			}
			if err != nil {
				logger.ErrorWithErr(ctx, "Failed to close duplicate leg", err, "trade_id", dup.ID, "leg", k.String())
				kept = append(kept, dup)
			}
		}
	}
	return kept
}

func older(a, b managedTrade) bool {
	if !a.OpenTime.Equal(b.OpenTime) {
		return a.OpenTime.Before(b.OpenTime)
	}
	// broker ids are numeric strings
	if len(a.ID) != len(b.ID) {
		return len(a.ID) < len(b.ID)
	}
	return a.ID < b.ID
}
