// Package fx maps basket symbols to broker instruments and converts quote
// currencies to USD from a mid-price map.
package fx

import (
	"strings"

	"weekly-basket-bot/internal/types"
)

var instrumentOverrides = map[string]string{
	"SPXUSD":    "SPX500_USD",
	"NDXUSD":    "NAS100_USD",
	"NIKKEIUSD": "JP225_USD",
	"US30":      "US30_USD",
	"US2000":    "US2000_USD",
	"BTCUSD":    "BTC_USD",
	"ETHUSD":    "ETH_USD",
	"XAUUSD":    "XAU_USD",
	"XAGUSD":    "XAG_USD",
	"WTIUSD":    "WTICO_USD",
	"SUGAR":     "SUGAR_USD",
	"WHEAT":     "WHEAT_USD",
	"COPPER":    "XCU_USD",
}

// Instrument returns the broker instrument name (BASE_QUOTE) for a basket symbol.
func Instrument(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if inst, ok := instrumentOverrides[symbol]; ok {
		return inst
	}
	if strings.Contains(symbol, "/") {
		return strings.Replace(symbol, "/", "_", 1)
	}
	if len(symbol) == 6 {
		return symbol[:3] + "_" + symbol[3:]
	}
	return symbol
}

// Split returns the base and quote of a BASE_QUOTE instrument.
func Split(instrument string) (base, quote string) {
	base, quote, _ = strings.Cut(instrument, "_")
	return base, quote
}

// ConversionPairs lists the instruments that can price currency in USD.
func ConversionPairs(currency string) []string {
	if currency == "" || currency == "USD" {
		return nil
	}
	return []string{currency + "_USD", "USD_" + currency}
}

// PriceMap holds mid prices keyed by instrument.
type PriceMap map[string]float64

func BuildPriceMap(prices []types.Price) PriceMap {
	m := make(PriceMap, len(prices))
	for _, p := range prices {
		if mid, ok := p.Mid(); ok {
			m[p.Instrument] = mid
		}
	}
	return m
}

// USDPer returns how many USD one unit of currency is worth, using the direct
// CCY_USD pair or the inverse USD_CCY pair.
func (m PriceMap) USDPer(currency string) (float64, bool) {
	if currency == "USD" {
		return 1, true
	}
	if direct, ok := m[currency+"_USD"]; ok && direct > 0 {
		return direct, true
	}
	if inverse, ok := m["USD_"+currency]; ok && inverse > 0 {
		return 1 / inverse, true
	}
	return 0, false
}

// NotionalUSDPerUnit is the USD value of one unit of instrument.
func (m PriceMap) NotionalUSDPerUnit(instrument string) (price, usdPerQuote float64, ok bool) {
	price, ok = m[instrument]
	if !ok || price <= 0 {
		return 0, 0, false
	}
	_, quote := Split(instrument)
	usdPerQuote, ok = m.USDPer(quote)
	if !ok {
		return 0, 0, false
	}
	return price, usdPerQuote, true
}
