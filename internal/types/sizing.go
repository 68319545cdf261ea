package types

// SizingPlanRow is one leg ready for submission. Units are unsigned; Direction
// carries the side.
type SizingPlanRow struct {
	Symbol             string     `json:"symbol"`
	Instrument         string     `json:"instrument"`
	Model              Model      `json:"model"`
	Direction          Direction  `json:"direction"`
	Units              float64    `json:"units"`
	RawUnits           float64    `json:"raw_units"`
	Precision          int        `json:"precision"`
	QuoteCurrency      string     `json:"quote_currency"`
	USDPerQuote        float64    `json:"usd_per_quote"`
	Price              float64    `json:"price"`
	NotionalUSDPerUnit float64    `json:"notional_usd_per_unit"`
	MarginRate         float64    `json:"margin_rate"`
	MinUnits           float64    `json:"min_units"`
	AssetClass         AssetClass `json:"asset_class"`
}

func (r SizingPlanRow) Key() LegKey {
	return LegKey{Symbol: NormalizeSymbol(r.Symbol), Model: r.Model, Direction: r.Direction}
}

type SkippedLeg struct {
	Symbol string `json:"symbol"`
	Model  Model  `json:"model"`
	Reason string `json:"reason"`
}

type SizingPath string

const (
	PathDelegated SizingPath = "delegated"
	PathDirect    SizingPath = "direct"
)

type SizingResult struct {
	Plan            []SizingPlanRow `json:"plan"`
	Skipped         []SkippedLeg    `json:"skipped"`
	NAV             float64         `json:"nav"`
	MarginAvailable float64         `json:"margin_available"`
	TotalMargin     float64         `json:"total_margin"`
	Scale           float64         `json:"scale"`
	Path            SizingPath      `json:"path"`
}

// AccountSizingRow is the per-symbol answer of a delegated sizing service.
// Optional numbers are pointers so that missing data is distinguishable from zero.
type AccountSizingRow struct {
	Symbol              string   `json:"symbol"`
	Instrument          string   `json:"instrument"`
	Available           bool     `json:"available"`
	Units               *float64 `json:"units"`
	RawUnits            *float64 `json:"rawUnits"`
	Price               *float64 `json:"price"`
	NotionalUSDPerUnit  *float64 `json:"notionalUsdPerUnit"`
	MarginRate          *float64 `json:"marginRate"`
	TradeUnitsPrecision *int     `json:"tradeUnitsPrecision"`
	MinUnits            *float64 `json:"minUnits"`
	Reason              string   `json:"reason"`
}

type AccountSizing struct {
	NAV             float64            `json:"nav"`
	MarginAvailable *float64           `json:"marginAvailable"`
	MarginUsed      *float64           `json:"marginUsed"`
	Currency        string             `json:"currency"`
	Rows            []AccountSizingRow `json:"rows"`
}
