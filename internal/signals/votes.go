package signals

import (
	"sort"

	"weekly-basket-bot/internal/types"
)

const (
	Tier1 types.Tier = 1
	Tier2 types.Tier = 2
	Tier3 types.Tier = 3
)

// ClassifyVotes turns per-symbol vote counts into a tiered direction.
//
//   - two voters: both agree is tier 1, one direction plus one neutral is tier 2
//   - every voter agrees: tier 1
//   - all but one agree and the remaining voter is neutral: tier 2
//   - otherwise the strict majority side is tier 3; ties give nothing
func ClassifyVotes(long, short, neutral, voters int) (types.Direction, types.Tier, bool) {
	if voters <= 0 {
		return "", 0, false
	}

	if voters == 2 {
		switch {
		case long == 2:
			return types.Long, Tier1, true
		case short == 2:
			return types.Short, Tier1, true
		case long == 1 && neutral == 1:
			return types.Long, Tier2, true
		case short == 1 && neutral == 1:
			return types.Short, Tier2, true
		}
		return "", 0, false
	}

	if long == voters {
		return types.Long, Tier1, true
	}
	if short == voters {
		return types.Short, Tier1, true
	}

	if neutral == 1 {
		if long == voters-1 {
			return types.Long, Tier2, true
		}
		if short == voters-1 {
			return types.Short, Tier2, true
		}
	}

	switch {
	case long > short:
		return types.Long, Tier3, true
	case short > long:
		return types.Short, Tier3, true
	}
	return "", 0, false
}

type tally struct {
	asset       types.AssetClass
	long, short int
}

// Agreement counts the votes of the given models per symbol and classifies
// them. A voter without a signal for the symbol counts as neutral.
func Agreement(batch []types.BasketSignal, voters []types.Model) []types.TieredSignal {
	isVoter := make(map[types.Model]bool, len(voters))
	for _, m := range voters {
		isVoter[m] = true
	}

	tallies := make(map[string]*tally)
	for _, s := range batch {
		if !isVoter[s.Model] {
			continue
		}
		t, ok := tallies[s.Symbol]
		if !ok {
			t = &tally{asset: s.AssetClass}
			tallies[s.Symbol] = t
		}
		switch s.Direction {
		case types.Long:
			t.long++
		case types.Short:
			t.short++
		}
	}

	symbols := make([]string, 0, len(tallies))
	for sym := range tallies {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var out []types.TieredSignal
	for _, sym := range symbols {
		t := tallies[sym]
		neutral := len(voters) - t.long - t.short
		dir, tier, ok := ClassifyVotes(t.long, t.short, neutral, len(voters))
		if !ok {
			continue
		}
		out = append(out, types.TieredSignal{Symbol: sym, AssetClass: t.asset, Direction: dir, Tier: tier})
	}
	return out
}
