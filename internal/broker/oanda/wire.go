package oanda

import (
	"strconv"
	"strings"
	"time"

	"weekly-basket-bot/internal/types"
)

// OANDA sends every decimal as a JSON string.

type accountWire struct {
	Account struct {
		NAV             string `json:"NAV"`
		Balance         string `json:"balance"`
		UnrealizedPL    string `json:"unrealizedPL"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
		Currency        string `json:"currency"`
		OpenTradeCount  int    `json:"openTradeCount"`
	} `json:"account"`
}

type instrumentsWire struct {
	Instruments []struct {
		Name                string `json:"name"`
		Type                string `json:"type"`
		DisplayPrecision    int    `json:"displayPrecision"`
		PipLocation         int    `json:"pipLocation"`
		TradeUnitsPrecision int    `json:"tradeUnitsPrecision"`
		MarginRate          string `json:"marginRate"`
		MinimumTradeSize    string `json:"minimumTradeSize"`
	} `json:"instruments"`
}

type priceBucket struct {
	Price string `json:"price"`
}

type pricingWire struct {
	Prices []struct {
		Instrument  string        `json:"instrument"`
		CloseoutBid string        `json:"closeoutBid"`
		CloseoutAsk string        `json:"closeoutAsk"`
		Bids        []priceBucket `json:"bids"`
		Asks        []priceBucket `json:"asks"`
	} `json:"prices"`
}

type clientExtensions struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type tradesWire struct {
	Trades []struct {
		ID               string            `json:"id"`
		Instrument       string            `json:"instrument"`
		CurrentUnits     string            `json:"currentUnits"`
		UnrealizedPL     string            `json:"unrealizedPL"`
		OpenTime         string            `json:"openTime"`
		ClientExtensions *clientExtensions `json:"clientExtensions"`
	} `json:"trades"`
}

type marketOrder struct {
	Type                  string            `json:"type"`
	Instrument            string            `json:"instrument"`
	Units                 string            `json:"units"`
	TimeInForce           string            `json:"timeInForce"`
	PositionFill          string            `json:"positionFill"`
	ClientExtensions      *clientExtensions `json:"clientExtensions,omitempty"`
	TradeClientExtensions *clientExtensions `json:"tradeClientExtensions,omitempty"`
}

type orderRequestWire struct {
	Order marketOrder `json:"order"`
}

type orderResponseWire struct {
	OrderCreateTransaction struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
	OrderFillTransaction *struct {
		ID          string `json:"id"`
		Price       string `json:"price"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
			Units   string `json:"units"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
}

type positionCloseWire struct {
	LongUnits  string `json:"longUnits,omitempty"`
	ShortUnits string `json:"shortUnits,omitempty"`
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func optNum(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// formatUnits renders signed units without exponent notation.
func formatUnits(units float64) string {
	return strconv.FormatFloat(units, 'f', -1, 64)
}

func (w accountWire) summary() types.AccountSummary {
	a := w.Account
	nav := num(a.NAV)
	if a.NAV == "" {
		nav = num(a.Balance)
	}
	return types.AccountSummary{
		NAV:             nav,
		Balance:         num(a.Balance),
		UnrealizedPL:    num(a.UnrealizedPL),
		MarginUsed:      optNum(a.MarginUsed),
		MarginAvailable: optNum(a.MarginAvailable),
		Currency:        a.Currency,
		OpenTradeCount:  a.OpenTradeCount,
	}
}

func (w instrumentsWire) instruments() []types.Instrument {
	out := make([]types.Instrument, 0, len(w.Instruments))
	for _, i := range w.Instruments {
		out = append(out, types.Instrument{
			Name:                i.Name,
			Type:                i.Type,
			DisplayPrecision:    i.DisplayPrecision,
			PipLocation:         i.PipLocation,
			TradeUnitsPrecision: i.TradeUnitsPrecision,
			MarginRate:          num(i.MarginRate),
			MinimumTradeSize:    num(i.MinimumTradeSize),
		})
	}
	return out
}

func (w pricingWire) prices() []types.Price {
	out := make([]types.Price, 0, len(w.Prices))
	for _, p := range w.Prices {
		bid, ask := p.CloseoutBid, p.CloseoutAsk
		if bid == "" && len(p.Bids) > 0 {
			bid = p.Bids[0].Price
		}
		if ask == "" && len(p.Asks) > 0 {
			ask = p.Asks[0].Price
		}
		out = append(out, types.Price{Instrument: p.Instrument, Bid: num(bid), Ask: num(ask)})
	}
	return out
}

func (w tradesWire) trades() []types.Trade {
	out := make([]types.Trade, 0, len(w.Trades))
	for _, t := range w.Trades {
		tr := types.Trade{
			ID:           t.ID,
			Instrument:   t.Instrument,
			CurrentUnits: num(t.CurrentUnits),
			UnrealizedPL: num(t.UnrealizedPL),
		}
		if t.ClientExtensions != nil {
			tr.Tag = t.ClientExtensions.Tag
		}
		if ts, err := time.Parse(time.RFC3339Nano, t.OpenTime); err == nil {
			tr.OpenTime = ts
		}
		out = append(out, tr)
	}
	return out
}
