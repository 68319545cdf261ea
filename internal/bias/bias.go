// Package bias turns weekly positioning counts into a directional bias.
package bias

import (
	"sort"

	"weekly-basket-bot/internal/types"
)

const (
	DealerWeight     = 0.6
	CommercialWeight = 0.4
)

func BiasFromNet(net float64) types.Bias {
	switch {
	case net > 0:
		return types.Bullish
	case net < 0:
		return types.Bearish
	default:
		return types.NeutralBias
	}
}

// Resolve computes the bias of one market under mode. ok is false when the
// mode needs commercial data and the report has none; callers treat that as
// no signal.
//
// Dealer net is short - long. Commercial net is long - short. The blended
// net is the weighted sum of the two.
func Resolve(p types.Positioning, mode types.BiasMode) (types.MarketBias, bool) {
	dealerNet := p.DealerShort - p.DealerLong
	hasCommercial := p.CommercialLong != nil && p.CommercialShort != nil

	switch mode {
	case types.ModeDealer:
		return newMarketBias(p.DealerLong, p.DealerShort, dealerNet), true

	case types.ModeCommercial:
		if !hasCommercial {
			return types.MarketBias{}, false
		}
		cl, cs := *p.CommercialLong, *p.CommercialShort
		return newMarketBias(cl, cs, cl-cs), true

	case types.ModeBlended:
		if !hasCommercial {
			return types.MarketBias{}, false
		}
		cl, cs := *p.CommercialLong, *p.CommercialShort
		long := DealerWeight*p.DealerLong + CommercialWeight*cl
		short := DealerWeight*p.DealerShort + CommercialWeight*cs
		net := DealerWeight*dealerNet + CommercialWeight*(cl-cs)
		return newMarketBias(long, short, net), true
	}
	return types.MarketBias{}, false
}

// ResolveAll resolves every market; markets without a signal are left out.
func ResolveAll(markets map[string]types.Positioning, mode types.BiasMode) map[string]types.MarketBias {
	out := make(map[string]types.MarketBias, len(markets))
	for _, name := range sortedKeys(markets) {
		if mb, ok := Resolve(markets[name], mode); ok {
			out[name] = mb
		}
	}
	return out
}

func newMarketBias(long, short, net float64) types.MarketBias {
	return types.MarketBias{Long: long, Short: short, Net: net, Bias: BiasFromNet(net)}
}

func sortedKeys(m map[string]types.Positioning) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
