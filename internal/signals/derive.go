package signals

import (
	"weekly-basket-bot/internal/bias"
	"weekly-basket-bot/internal/types"
)

// DeriveCross signals a pair only when base and quote carry opposite,
// non-neutral biases: LONG when the base is bullish, SHORT when it is bearish.
func DeriveCross(markets map[string]types.Positioning, pairs []types.PairDefinition, mode types.BiasMode) map[string]types.PairSignal {
	resolved := bias.ResolveAll(markets, mode)
	out := make(map[string]types.PairSignal)

	for _, p := range pairs {
		base, okBase := resolved[p.Base]
		quote, okQuote := resolved[p.Quote]
		if !okBase || !okQuote {
			continue
		}
		if base.Bias == types.NeutralBias || quote.Bias == types.NeutralBias || base.Bias == quote.Bias {
			continue
		}

		dir := types.Short
		if base.Bias == types.Bullish {
			dir = types.Long
		}
		out[p.Pair] = types.PairSignal{Pair: p.Pair, Direction: dir, BaseBias: base.Bias, QuoteBias: quote.Bias}
	}
	return out
}

// DeriveByBase signals every pair whose base market is non-neutral. The quote
// bias is informational and NEUTRAL when the quote has no report.
func DeriveByBase(markets map[string]types.Positioning, pairs []types.PairDefinition, mode types.BiasMode) map[string]types.PairSignal {
	resolved := bias.ResolveAll(markets, mode)
	out := make(map[string]types.PairSignal)

	for _, p := range pairs {
		base, ok := resolved[p.Base]
		if !ok || base.Bias == types.NeutralBias {
			continue
		}
		quoteBias := types.NeutralBias
		if quote, ok := resolved[p.Quote]; ok {
			quoteBias = quote.Bias
		}

		dir := types.Short
		if base.Bias == types.Bullish {
			dir = types.Long
		}
		out[p.Pair] = types.PairSignal{Pair: p.Pair, Direction: dir, BaseBias: base.Bias, QuoteBias: quoteBias}
	}
	return out
}

// Derive picks the derivation rule for an asset class.
func Derive(asset types.AssetClass, markets map[string]types.Positioning, mode types.BiasMode) map[string]types.PairSignal {
	if asset == types.AssetFX {
		return DeriveCross(markets, Pairs[asset], mode)
	}
	return DeriveByBase(markets, Pairs[asset], mode)
}
