package signals

import "weekly-basket-bot/internal/types"

func pair(p, base, quote string) types.PairDefinition {
	return types.PairDefinition{Pair: p, Base: base, Quote: quote}
}

// Pairs is the tradable universe per asset class. FX pairs are crosses of the
// eight reported currencies; every other class is quoted against USD and
// signalled on its base market alone.
var Pairs = map[types.AssetClass][]types.PairDefinition{
	types.AssetFX: {
		pair("EURUSD", "EUR", "USD"),
		pair("GBPUSD", "GBP", "USD"),
		pair("AUDUSD", "AUD", "USD"),
		pair("NZDUSD", "NZD", "USD"),
		pair("USDJPY", "USD", "JPY"),
		pair("USDCHF", "USD", "CHF"),
		pair("USDCAD", "USD", "CAD"),
		pair("EURGBP", "EUR", "GBP"),
		pair("EURJPY", "EUR", "JPY"),
		pair("EURCHF", "EUR", "CHF"),
		pair("EURAUD", "EUR", "AUD"),
		pair("EURNZD", "EUR", "NZD"),
		pair("EURCAD", "EUR", "CAD"),
		pair("GBPJPY", "GBP", "JPY"),
		pair("GBPCHF", "GBP", "CHF"),
		pair("GBPAUD", "GBP", "AUD"),
		pair("GBPNZD", "GBP", "NZD"),
		pair("GBPCAD", "GBP", "CAD"),
		pair("AUDJPY", "AUD", "JPY"),
		pair("AUDCHF", "AUD", "CHF"),
		pair("AUDCAD", "AUD", "CAD"),
		pair("AUDNZD", "AUD", "NZD"),
		pair("NZDJPY", "NZD", "JPY"),
		pair("NZDCHF", "NZD", "CHF"),
		pair("NZDCAD", "NZD", "CAD"),
		pair("CADJPY", "CAD", "JPY"),
		pair("CADCHF", "CAD", "CHF"),
		pair("CHFJPY", "CHF", "JPY"),
	},
	types.AssetIndices: {
		pair("SPXUSD", "SPX", "USD"),
		pair("NDXUSD", "NDX", "USD"),
		pair("NIKKEIUSD", "NIKKEI", "USD"),
	},
	types.AssetCrypto: {
		pair("BTCUSD", "BTC", "USD"),
		pair("ETHUSD", "ETH", "USD"),
	},
	types.AssetCommodities: {
		pair("XAUUSD", "XAU", "USD"),
		pair("XAGUSD", "XAG", "USD"),
		pair("WTIUSD", "WTI", "USD"),
	},
}

// AssetClassOf looks a symbol up in the catalogue.
func AssetClassOf(symbol string) (types.AssetClass, bool) {
	for _, asset := range types.AssetClasses {
		for _, p := range Pairs[asset] {
			if p.Pair == symbol {
				return asset, true
			}
		}
	}
	return "", false
}
