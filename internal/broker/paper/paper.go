// Package paper is an in-memory hedging account. Every order opens its own
// trade at the current mid price, exactly like a broker account with hedging
// enabled. It backs PAPER mode and the engine tests.
package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"weekly-basket-bot/internal/fx"
	"weekly-basket-bot/internal/types"
)

type InstrumentConfig struct {
	Name                string  `yaml:"name"`
	Bid                 float64 `yaml:"bid"`
	Ask                 float64 `yaml:"ask"`
	MarginRate          float64 `yaml:"margin_rate"`
	TradeUnitsPrecision int     `yaml:"trade_units_precision"`
	MinimumTradeSize    float64 `yaml:"minimum_trade_size"`
}

type Config struct {
	Balance     float64            `yaml:"balance"`
	Currency    string             `yaml:"currency"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// Faults makes the account misbehave on purpose.
type Faults struct {
	// RejectOrdersAfter rejects every order once this many have filled (0 = never).
	RejectOrdersAfter int
	// RejectInstruments rejects orders for these instruments.
	RejectInstruments map[string]bool
	// DropTags opens trades without the client tag.
	DropTags bool
	// FailClosePosition and FailCloseTrade make the respective close calls error.
	FailClosePosition bool
	FailCloseTrade    bool
	// StuckTrades are never closed, whatever call is used.
	StuckTrades map[string]bool
}

type trade struct {
	types.Trade
	entry float64
}

type Broker struct {
	mu          sync.Mutex
	balance     float64
	currency    string
	instruments map[string]InstrumentConfig
	trades      []*trade
	nextID      int
	filled      int
	faults      Faults
	now         func() time.Time

	orderCalls int
	closeCalls int
}

func New(cfg Config) *Broker {
	b := &Broker{
		balance:     cfg.Balance,
		currency:    cfg.Currency,
		instruments: make(map[string]InstrumentConfig, len(cfg.Instruments)),
		nextID:      100,
		now:         time.Now,
	}
	if b.currency == "" {
		b.currency = "USD"
	}
	for _, inst := range cfg.Instruments {
		b.instruments[inst.Name] = inst
	}
	return b
}

func (b *Broker) AccountSummary(_ context.Context) (types.AccountSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prices := b.priceMap()
	var unrealized, marginUsed float64
	for _, t := range b.trades {
		unrealized += b.unrealized(t, prices)
		marginUsed += b.margin(t, prices)
	}
	nav := b.balance + unrealized
	available := math.Max(0, nav-marginUsed)
	return types.AccountSummary{
		NAV:             nav,
		Balance:         b.balance,
		UnrealizedPL:    unrealized,
		MarginUsed:      &marginUsed,
		MarginAvailable: &available,
		Currency:        b.currency,
		OpenTradeCount:  len(b.trades),
	}, nil
}

func (b *Broker) Instruments(_ context.Context) ([]types.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Instrument, 0, len(b.instruments))
	for _, inst := range b.instruments {
		out = append(out, types.Instrument{
			Name:                inst.Name,
			Type:                "CURRENCY",
			TradeUnitsPrecision: inst.TradeUnitsPrecision,
			MarginRate:          inst.MarginRate,
			MinimumTradeSize:    inst.MinimumTradeSize,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Broker) Pricing(_ context.Context, instruments []string) ([]types.Price, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Price, 0, len(instruments))
	for _, name := range instruments {
		if inst, ok := b.instruments[name]; ok {
			out = append(out, types.Price{Instrument: name, Bid: inst.Bid, Ask: inst.Ask})
		}
	}
	return out, nil
}

func (b *Broker) OpenTrades(_ context.Context) ([]types.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prices := b.priceMap()
	out := make([]types.Trade, 0, len(b.trades))
	for _, t := range b.trades {
		tr := t.Trade
		tr.UnrealizedPL = b.unrealized(t, prices)
		out = append(out, tr)
	}
	return out, nil
}

func (b *Broker) PlaceMarketOrder(_ context.Context, req types.OrderReq) (types.OrderResp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderCalls++

	if b.faults.RejectOrdersAfter > 0 && b.filled >= b.faults.RejectOrdersAfter {
		return types.OrderResp{}, fmt.Errorf("%w: %s: INSUFFICIENT_LIQUIDITY", types.ErrOrder, req.Instrument)
	}
	if b.faults.RejectInstruments[req.Instrument] {
		return types.OrderResp{}, fmt.Errorf("%w: %s: MARKET_HALTED", types.ErrOrder, req.Instrument)
	}
	inst, ok := b.instruments[req.Instrument]
	if !ok {
		return types.OrderResp{}, fmt.Errorf("%w: unknown instrument %s", types.ErrOrder, req.Instrument)
	}
	if req.Units == 0 || math.IsNaN(req.Units) {
		return types.OrderResp{}, fmt.Errorf("%w: %s: zero units", types.ErrOrder, req.Instrument)
	}
	prices := b.priceMap()
	mid, ok := prices[req.Instrument]
	if !ok {
		return types.OrderResp{}, fmt.Errorf("%w: %s: no price", types.ErrOrder, req.Instrument)
	}

	t := &trade{
		Trade: types.Trade{
			ID:           strconv.Itoa(b.nextID),
			Instrument:   req.Instrument,
			CurrentUnits: req.Units,
			Tag:          req.Tag,
			OpenTime:     b.now(),
		},
		entry: mid,
	}
	if b.faults.DropTags {
		t.Tag = ""
	}

	var used float64
	for _, open := range b.trades {
		used += b.margin(open, prices)
	}
	nav := b.navLocked(prices)
	if need := b.margin(t, prices); need > nav-used {
		return types.OrderResp{}, fmt.Errorf("%w: %s: INSUFFICIENT_MARGIN (need %.2f, have %.2f)", types.ErrOrder, inst.Name, need, nav-used)
	}

	b.nextID++
	b.filled++
	b.trades = append(b.trades, t)
	return types.OrderResp{
		OrderID: strconv.Itoa(b.nextID - 1),
		TradeID: t.ID,
		Status:  "FILLED",
		Units:   req.Units,
		Price:   mid,
	}, nil
}

func (b *Broker) CloseTrade(_ context.Context, tradeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++

	if b.faults.FailCloseTrade {
		return fmt.Errorf("close trade %s: TRADE_DOESNT_EXIST", tradeID)
	}
	for i, t := range b.trades {
		if t.ID != tradeID {
			continue
		}
		if b.faults.StuckTrades[tradeID] {
			return fmt.Errorf("close trade %s: MARKET_HALTED", tradeID)
		}
		b.realize(t)
		b.trades = append(b.trades[:i], b.trades[i+1:]...)
		return nil
	}
	return fmt.Errorf("close trade %s: not found", tradeID)
}

func (b *Broker) ClosePosition(_ context.Context, instrument string, side types.CloseSide) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++

	if b.faults.FailClosePosition {
		return fmt.Errorf("close position %s: POSITION_CLOSEOUT_FAILED", instrument)
	}
	kept := b.trades[:0]
	closed := 0
	for _, t := range b.trades {
		match := t.Instrument == instrument &&
			(side == types.CloseBoth ||
				(side == types.CloseLong && t.CurrentUnits > 0) ||
				(side == types.CloseShort && t.CurrentUnits < 0))
		if match && !b.faults.StuckTrades[t.ID] {
			b.realize(t)
			closed++
			continue
		}
		kept = append(kept, t)
	}
	b.trades = kept
	if closed == 0 {
		return fmt.Errorf("close position %s: no %s units open", instrument, side)
	}
	return nil
}

// SetFaults replaces the active fault set.
func (b *Broker) SetFaults(f Faults) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = f
}

// SetPrice moves an instrument's quote, which moves unrealized P/L and NAV.
func (b *Broker) SetPrice(instrument string, bid, ask float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst := b.instruments[instrument]
	inst.Name = instrument
	inst.Bid, inst.Ask = bid, ask
	b.instruments[instrument] = inst
}

// SetBalance overwrites the cash balance.
func (b *Broker) SetBalance(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = v
}

// Inject adds a trade opened outside the bot, such as a manual trade.
func (b *Broker) Inject(tr types.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tr.ID == "" {
		tr.ID = strconv.Itoa(b.nextID)
		b.nextID++
	}
	if tr.OpenTime.IsZero() {
		tr.OpenTime = b.now()
	}
	entry := b.priceMap()[tr.Instrument]
	b.trades = append(b.trades, &trade{Trade: tr, entry: entry})
}

// SetClock replaces the time source used for trade open times.
func (b *Broker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Calls returns the number of order and close calls received so far.
func (b *Broker) Calls() (orders, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orderCalls, b.closeCalls
}

func (b *Broker) priceMap() fx.PriceMap {
	prices := make([]types.Price, 0, len(b.instruments))
	for name, inst := range b.instruments {
		prices = append(prices, types.Price{Instrument: name, Bid: inst.Bid, Ask: inst.Ask})
	}
	return fx.BuildPriceMap(prices)
}

func (b *Broker) navLocked(prices fx.PriceMap) float64 {
	nav := b.balance
	for _, t := range b.trades {
		nav += b.unrealized(t, prices)
	}
	return nav
}

func (b *Broker) unrealized(t *trade, prices fx.PriceMap) float64 {
	price, usdPerQuote, ok := prices.NotionalUSDPerUnit(t.Instrument)
	if !ok || t.entry == 0 {
		return 0
	}
	return t.CurrentUnits * (price - t.entry) * usdPerQuote
}

func (b *Broker) margin(t *trade, prices fx.PriceMap) float64 {
	price, usdPerQuote, ok := prices.NotionalUSDPerUnit(t.Instrument)
	if !ok {
		return 0
	}
	return math.Abs(t.CurrentUnits) * price * usdPerQuote * b.instruments[t.Instrument].MarginRate
}

func (b *Broker) realize(t *trade) {
	b.balance += b.unrealized(t, b.priceMap())
}
