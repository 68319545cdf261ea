package signals

import (
	"time"

	"weekly-basket-bot/internal/types"
)

// TierVoters are the models whose agreement is published as tiers.
var TierVoters = []types.Model{types.ModelDealer, types.ModelCommercial, types.ModelSentiment}

// Report is one weekly positioning report across asset classes.
type Report struct {
	ReportDate string                                           `json:"report_date"`
	Markets    map[types.AssetClass]map[string]types.Positioning `json:"markets"`
}

// Snapshot is the input the basket is composed from: the latest report, the
// previous reports (newest first) and the current sentiment readings.
type Snapshot struct {
	Report
	LastRefreshUTC string               `json:"last_refresh_utc"`
	History        []Report             `json:"history"`
	Sentiment      []SentimentAggregate `json:"sentiment"`
}

func (s *Snapshot) series(asset types.AssetClass) []map[string]types.Positioning {
	out := []map[string]types.Positioning{s.Markets[asset]}
	for _, r := range s.History {
		if m, ok := r.Markets[asset]; ok {
			out = append(out, m)
		}
	}
	return out
}

// BuildBasket composes the week's signals for the requested asset classes
// (all when empty). Neutral and missing signals produce no row.
func BuildBasket(snap *Snapshot, assets []types.AssetClass, now time.Time) *types.SignalBatch {
	if len(assets) == 0 {
		assets = types.AssetClasses
	}

	allowed, reason := EvaluateFreshness(snap.ReportDate, now)
	batch := &types.SignalBatch{
		ReportDate:     snap.ReportDate,
		LastRefreshUTC: snap.LastRefreshUTC,
		TradingAllowed: allowed,
		Reason:         reason,
	}

	sentiment := make(map[string]*SentimentAggregate, len(snap.Sentiment))
	for i := range snap.Sentiment {
		sentiment[snap.Sentiment[i].Symbol] = &snap.Sentiment[i]
	}

	for _, asset := range assets {
		markets, ok := snap.Markets[asset]
		if !ok {
			continue
		}
		for _, mode := range []types.BiasMode{types.ModeBlended, types.ModeDealer, types.ModeCommercial} {
			batch.Pairs = append(batch.Pairs, biasRows(asset, markets, mode)...)
		}
		batch.Pairs = append(batch.Pairs, Antikythera(asset, snap.series(asset), sentiment)...)
	}

	for _, asset := range assets {
		for _, p := range Pairs[asset] {
			if dir, ok := SentimentDirection(sentiment[p.Pair]); ok {
				batch.Pairs = append(batch.Pairs, types.BasketSignal{
					Symbol: p.Pair, Direction: dir, Model: types.ModelSentiment, AssetClass: asset,
				})
			}
		}
	}

	batch.Tiers = Agreement(batch.Pairs, TierVoters)
	return batch
}

func biasRows(asset types.AssetClass, markets map[string]types.Positioning, mode types.BiasMode) []types.BasketSignal {
	derived := Derive(asset, markets, mode)
	var rows []types.BasketSignal
	for _, p := range Pairs[asset] {
		info, ok := derived[p.Pair]
		if !ok {
			continue
		}
		rows = append(rows, types.BasketSignal{
			Symbol:     p.Pair,
			Direction:  info.Direction,
			Model:      types.Model(mode),
			AssetClass: asset,
		})
	}
	return rows
}
