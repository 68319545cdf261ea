package bias

import (
	"math"
	"testing"

	"weekly-basket-bot/internal/types"
)

func f(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBiasFromNet(t *testing.T) {
	tests := []struct {
		net  float64
		want types.Bias
	}{
		{12.5, types.Bullish},
		{-0.01, types.Bearish},
		{0, types.NeutralBias},
	}
	for _, tt := range tests {
		if got := BiasFromNet(tt.net); got != tt.want {
			t.Errorf("BiasFromNet(%v): Expected %s, got %s", tt.net, tt.want, got)
		}
	}
}

func TestResolveDealerIsContrarian(t *testing.T) {
	mb, ok := Resolve(types.Positioning{DealerLong: 100, DealerShort: 300}, types.ModeDealer)
	if !ok {
		t.Fatal("Expected dealer signal")
	}
	if mb.Net != 200 || mb.Bias != types.Bullish {
		t.Errorf("Expected net 200 BULLISH, got %v %s", mb.Net, mb.Bias)
	}
}

func TestResolveCommercialWithoutDataIsNoSignal(t *testing.T) {
	p := types.Positioning{DealerLong: 1, DealerShort: 2}
	if _, ok := Resolve(p, types.ModeCommercial); ok {
		t.Error("Expected no commercial signal without commercial data")
	}
	if _, ok := Resolve(p, types.ModeBlended); ok {
		t.Error("Expected no blended signal without commercial data")
	}
	p.CommercialLong = f(5)
	if _, ok := Resolve(p, types.ModeCommercial); ok {
		t.Error("Expected no commercial signal with only one side present")
	}
}

func TestResolveCommercial(t *testing.T) {
	mb, ok := Resolve(types.Positioning{CommercialLong: f(50), CommercialShort: f(80)}, types.ModeCommercial)
	if !ok {
		t.Fatal("Expected commercial signal")
	}
	if mb.Net != -30 || mb.Bias != types.Bearish {
		t.Errorf("Expected net -30 BEARISH, got %v %s", mb.Net, mb.Bias)
	}
}

func TestResolveBlended(t *testing.T) {
	p := types.Positioning{
		DealerLong: 100, DealerShort: 200, // dealer net +100
		CommercialLong: f(300), CommercialShort: f(100), // commercial net +200
	}
	mb, ok := Resolve(p, types.ModeBlended)
	if !ok {
		t.Fatal("Expected blended signal")
	}
	if !near(mb.Long, 180) || !near(mb.Short, 160) {
		t.Errorf("Expected long 180 short 160, got %v %v", mb.Long, mb.Short)
	}
	if !near(mb.Net, 140) || mb.Bias != types.Bullish {
		t.Errorf("Expected net 140 BULLISH, got %v %s", mb.Net, mb.Bias)
	}

	// cohorts disagree, the commercial side outweighs the dealer side
	p.DealerLong, p.DealerShort = 100, 110
	p.CommercialLong, p.CommercialShort = f(100), f(200)
	mb, _ = Resolve(p, types.ModeBlended)
	if !near(mb.Net, -34) || mb.Bias != types.Bearish {
		t.Errorf("Expected net -34 BEARISH, got %v %s", mb.Net, mb.Bias)
	}
}

func TestResolveAllSkipsMissing(t *testing.T) {
	markets := map[string]types.Positioning{
		"EUR": {DealerLong: 1, DealerShort: 2, CommercialLong: f(3), CommercialShort: f(1)},
		"USD": {DealerLong: 2, DealerShort: 1},
	}
	got := ResolveAll(markets, types.ModeCommercial)
	if len(got) != 1 {
		t.Fatalf("Expected 1 market, got %d", len(got))
	}
	if got["EUR"].Bias != types.Bullish {
		t.Errorf("Expected EUR BULLISH, got %s", got["EUR"].Bias)
	}
}
