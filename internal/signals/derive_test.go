package signals

import (
	"testing"

	"weekly-basket-bot/internal/types"
)

// dealer net is short - long
func bullish() types.Positioning { return types.Positioning{DealerLong: 100, DealerShort: 200} }
func bearish() types.Positioning { return types.Positioning{DealerLong: 200, DealerShort: 100} }
func flat() types.Positioning    { return types.Positioning{DealerLong: 100, DealerShort: 100} }

func TestDeriveCross(t *testing.T) {
	markets := map[string]types.Positioning{
		"EUR": bullish(),
		"USD": bearish(),
		"JPY": bullish(),
		"GBP": flat(),
	}
	pairs := []types.PairDefinition{
		{Pair: "EURUSD", Base: "EUR", Quote: "USD"},
		{Pair: "USDJPY", Base: "USD", Quote: "JPY"},
		{Pair: "EURJPY", Base: "EUR", Quote: "JPY"},
		{Pair: "GBPUSD", Base: "GBP", Quote: "USD"},
		{Pair: "AUDUSD", Base: "AUD", Quote: "USD"},
	}

	got := DeriveCross(markets, pairs, types.ModeDealer)
	if len(got) != 2 {
		t.Fatalf("Expected 2 signals, got %d: %+v", len(got), got)
	}
	if got["EURUSD"].Direction != types.Long {
		t.Errorf("Expected EURUSD LONG, got %s", got["EURUSD"].Direction)
	}
	if got["USDJPY"].Direction != types.Short {
		t.Errorf("Expected USDJPY SHORT, got %s", got["USDJPY"].Direction)
	}
	if _, ok := got["EURJPY"]; ok {
		t.Error("Expected no signal when both legs share a bias")
	}
}

func TestDeriveByBase(t *testing.T) {
	markets := map[string]types.Positioning{
		"XAU": bearish(),
		"XAG": flat(),
	}
	got := DeriveByBase(markets, Pairs[types.AssetCommodities], types.ModeDealer)
	if len(got) != 1 {
		t.Fatalf("Expected 1 signal, got %d", len(got))
	}
	sig := got["XAUUSD"]
	if sig.Direction != types.Short || sig.QuoteBias != types.NeutralBias {
		t.Errorf("Unexpected XAUUSD signal %+v", sig)
	}
}

func TestDeriveCommercialModeWithoutDataIsEmpty(t *testing.T) {
	markets := map[string]types.Positioning{"EUR": bullish(), "USD": bearish()}
	if got := DeriveCross(markets, Pairs[types.AssetFX], types.ModeCommercial); len(got) != 0 {
		t.Errorf("Expected no commercial signals, got %+v", got)
	}
}

func TestFXCatalogueHas28Crosses(t *testing.T) {
	if n := len(Pairs[types.AssetFX]); n != 28 {
		t.Errorf("Expected 28 fx pairs, got %d", n)
	}
	if asset, ok := AssetClassOf("NDXUSD"); !ok || asset != types.AssetIndices {
		t.Errorf("Expected NDXUSD in indices, got %s %v", asset, ok)
	}
}
