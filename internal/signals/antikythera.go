package signals

import (
	"math"
	"sort"

	"weekly-basket-bot/internal/types"
)

const (
	regimeLookback = 104
	timingLookback = 26
	minScore       = 4
	maxAntikythera = 200
)

type band struct{ medium, strong float64 }

type thresholds struct{ regime, timing band }

var antikytheraThresholds = map[types.AssetClass]thresholds{
	types.AssetFX:          {regime: band{0.8, 1.2}, timing: band{1.0, 1.5}},
	types.AssetIndices:     {regime: band{1.0, 1.5}, timing: band{1.5, 2.0}},
	types.AssetCrypto:      {regime: band{1.2, 1.8}, timing: band{1.8, 2.4}},
	types.AssetCommodities: {regime: band{0.7, 1.1}, timing: band{1.0, 1.4}},
}

type scoredSignal struct {
	signal     types.BasketSignal
	confidence int
}

// Antikythera keeps dealer pair signals whose long-horizon (regime) and
// short-horizon (timing) z-scores of dealer net agree, with sentiment as a
// third confirmation. series holds one market map per report, newest first.
func Antikythera(asset types.AssetClass, series []map[string]types.Positioning, sentiment map[string]*SentimentAggregate) []types.BasketSignal {
	if len(series) == 0 {
		return nil
	}
	th, ok := antikytheraThresholds[asset]
	if !ok {
		return nil
	}

	dealer := Derive(asset, series[0], types.ModeDealer)
	regimeZ := netZScores(series, regimeLookback)
	timingZ := netZScores(series, timingLookback)

	var scored []scoredSignal
	for _, p := range Pairs[asset] {
		info, ok := dealer[p.Pair]
		if !ok {
			continue
		}
		regime := regimeZ[p.Base] - regimeZ[p.Quote]
		timing := timingZ[p.Base] - timingZ[p.Quote]

		dir := types.Short
		if regime >= 0 {
			dir = types.Long
		}
		if dir != info.Direction {
			continue
		}

		score := scoreBand(regime, th.regime) + scoreBand(timing, th.timing) + sentimentScore(dir, sentiment[p.Pair])
		if score < minScore {
			continue
		}
		scored = append(scored, scoredSignal{
			signal:     types.BasketSignal{Symbol: p.Pair, Direction: dir, Model: types.ModelAntikythera, AssetClass: asset},
			confidence: min(100, score*15),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].confidence > scored[j].confidence })
	if len(scored) > maxAntikythera {
		scored = scored[:maxAntikythera]
	}

	out := make([]types.BasketSignal, len(scored))
	for i, s := range scored {
		out[i] = s.signal
	}
	return out
}

// netZScores returns, per market, the z-score of the latest dealer net
// within the first lookback reports.
func netZScores(series []map[string]types.Positioning, lookback int) map[string]float64 {
	window := series[:min(len(series), lookback)]
	scores := make(map[string]float64)
	for market, latest := range window[0] {
		values := make([]float64, 0, len(window))
		for _, report := range window {
			if p, ok := report[market]; ok {
				values = append(values, p.DealerShort-p.DealerLong)
			}
		}
		scores[market] = zscore(latest.DealerShort-latest.DealerLong, values)
	}
	return scores
}

func zscore(value float64, values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return 0
	}
	return (value - mean) / std
}

func scoreBand(v float64, b band) int {
	abs := math.Abs(v)
	switch {
	case abs >= b.strong:
		return 2
	case abs >= b.medium:
		return 1
	}
	return 0
}

func sentimentScore(dir types.Direction, agg *SentimentAggregate) int {
	if agg == nil {
		return 0
	}
	if dir == types.Long && agg.CrowdingState == CrowdedShort {
		return 2
	}
	if dir == types.Short && agg.CrowdingState == CrowdedLong {
		return 2
	}
	if agg.FlipState != "" && agg.FlipState != FlipNone {
		return 2
	}
	return 0
}
