package types

import (
	"math"
	"time"
)

type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Sign returns +1 for LONG, -1 for SHORT and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

type Bias string

const (
	Bullish     Bias = "BULLISH"
	Bearish     Bias = "BEARISH"
	NeutralBias Bias = "NEUTRAL"
)

type BiasMode string

const (
	ModeDealer     BiasMode = "dealer"
	ModeCommercial BiasMode = "commercial"
	ModeBlended    BiasMode = "blended"
)

// Model names the signal source a basket leg belongs to.
type Model string

const (
	ModelAntikythera Model = "antikythera"
	ModelBlended     Model = "blended"
	ModelDealer      Model = "dealer"
	ModelCommercial  Model = "commercial"
	ModelSentiment   Model = "sentiment"
)

var Models = []Model{ModelAntikythera, ModelBlended, ModelDealer, ModelCommercial, ModelSentiment}

func (m Model) Valid() bool {
	for _, known := range Models {
		if m == known {
			return true
		}
	}
	return false
}

type AssetClass string

const (
	AssetFX          AssetClass = "fx"
	AssetIndices     AssetClass = "indices"
	AssetCrypto      AssetClass = "crypto"
	AssetCommodities AssetClass = "commodities"
)

var AssetClasses = []AssetClass{AssetFX, AssetIndices, AssetCrypto, AssetCommodities}

// Positioning is one market's weekly positioning report. Commercial figures are
// optional; when either is nil the commercial cohort has no signal.
type Positioning struct {
	DealerLong      float64  `json:"dealer_long"`
	DealerShort     float64  `json:"dealer_short"`
	CommercialLong  *float64 `json:"commercial_long"`
	CommercialShort *float64 `json:"commercial_short"`
}

type MarketBias struct {
	Long  float64 `json:"long"`
	Short float64 `json:"short"`
	Net   float64 `json:"net"`
	Bias  Bias    `json:"bias"`
}

type PairDefinition struct {
	Pair  string `json:"pair"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type PairSignal struct {
	Pair      string    `json:"pair"`
	Direction Direction `json:"direction"`
	BaseBias  Bias      `json:"base_bias"`
	QuoteBias Bias      `json:"quote_bias"`
}

type BasketSignal struct {
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	Model      Model      `json:"model"`
	AssetClass AssetClass `json:"asset_class"`
}

type Tier int

type TieredSignal struct {
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"asset_class"`
	Direction  Direction  `json:"direction"`
	Tier       Tier       `json:"tier"`
}

// SignalBatch is what the signal feed returns for the current week.
type SignalBatch struct {
	ReportDate     string         `json:"report_date"`
	LastRefreshUTC string         `json:"last_refresh_utc"`
	TradingAllowed bool           `json:"trading_allowed"`
	Reason         string         `json:"reason"`
	WeekOpenUTC    string         `json:"week_open_utc"`
	Pairs          []BasketSignal `json:"pairs"`
	Tiers          []TieredSignal `json:"tiers,omitempty"`
}

// Broker side

type AccountSummary struct {
	NAV             float64
	Balance         float64
	UnrealizedPL    float64
	MarginUsed      *float64
	MarginAvailable *float64
	Currency        string
	OpenTradeCount  int
}

type Instrument struct {
	Name                string
	Type                string
	DisplayPrecision    int
	PipLocation         int
	TradeUnitsPrecision int
	MarginRate          float64
	MinimumTradeSize    float64
}

type Price struct {
	Instrument string
	Bid        float64
	Ask        float64
}

// Mid returns (bid+ask)/2, or false when either side is missing or not finite.
func (p Price) Mid() (float64, bool) {
	if !finitePositive(p.Bid) || !finitePositive(p.Ask) {
		return 0, false
	}
	return (p.Bid + p.Ask) / 2, true
}

type Trade struct {
	ID           string
	Instrument   string
	CurrentUnits float64
	UnrealizedPL float64
	Tag          string
	OpenTime     time.Time
}

func (t Trade) Direction() Direction {
	if t.CurrentUnits < 0 {
		return Short
	}
	return Long
}

type PositionFill string

const (
	OpenOnly    PositionFill = "OPEN_ONLY"
	ReduceFirst PositionFill = "REDUCE_FIRST"
	DefaultFill PositionFill = "DEFAULT"
	ReduceOnly  PositionFill = "REDUCE_ONLY"
)

type OrderReq struct {
	Instrument   string
	Units        float64 // signed: positive buys, negative sells
	Tag          string
	PositionFill PositionFill
}

type OrderResp struct {
	OrderID string  `json:"order_id"`
	TradeID string  `json:"trade_id"`
	Status  string  `json:"status"`
	Units   float64 `json:"units"`
	Price   float64 `json:"price"`
}

type CloseSide string

const (
	CloseLong  CloseSide = "LONG"
	CloseShort CloseSide = "SHORT"
	CloseBoth  CloseSide = "BOTH"
)

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
