// Package sizing turns basket signals into broker-sized legs that fit the
// account's available margin.
package sizing

import (
	"context"
	"fmt"
	"math"
	"sort"

	"weekly-basket-bot/internal/fx"
	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/types"
)

type Sizer struct {
	broker  interfaces.Broker
	service interfaces.AccountSizer
}

var _ interfaces.PositionSizer = (*Sizer)(nil)

// New returns a sizer. service may be nil, in which case every plan is built
// from broker data directly.
func New(broker interfaces.Broker, service interfaces.AccountSizer) *Sizer {
	return &Sizer{broker: broker, service: service}
}

// leg is a candidate before scaling.
type leg struct {
	signal     types.BasketSignal
	instrument string
	units      float64 // full-size units used for margin
	baseUnits  float64 // units the scale applies to
	precision  int
	minUnits   float64
	price      float64
	usdPerQ    float64
	notional   float64
	marginRate float64
}

func (l leg) margin() float64 {
	return math.Abs(l.units) * l.notional * l.marginRate
}

// BuildPlan sizes every non-neutral signal. The delegated service is tried
// first; on any failure the plan is built from broker data.
func (s *Sizer) BuildPlan(ctx context.Context, signals []types.BasketSignal, marginBuffer float64) (*types.SizingResult, error) {
	trade := make([]types.BasketSignal, 0, len(signals))
	for _, sig := range signals {
		if sig.Direction == types.Long || sig.Direction == types.Short {
			trade = append(trade, sig)
		}
	}

	if s.service != nil {
		res, err := s.delegated(ctx, trade, marginBuffer)
		if err == nil {
			return res, nil
		}
		logger.Warn(ctx, "Delegated sizing failed, falling back to broker data", "error", err)
	}
	return s.direct(ctx, trade, marginBuffer)
}

func (s *Sizer) delegated(ctx context.Context, signals []types.BasketSignal, buffer float64) (*types.SizingResult, error) {
	sizing, err := s.service.SizingRows(ctx, uniqueSymbols(signals))
	if err != nil {
		return nil, err
	}
	if !finite(sizing.NAV) || sizing.NAV <= 0 {
		return nil, fmt.Errorf("%w: invalid NAV %v", types.ErrSizing, sizing.NAV)
	}

	rows := make(map[string]types.AccountSizingRow, len(sizing.Rows))
	for _, r := range sizing.Rows {
		rows[r.Symbol] = r
	}

	var legs []leg
	var skipped []types.SkippedLeg
	for _, sig := range signals {
		row, ok := rows[sig.Symbol]
		if !ok {
			skipped = append(skipped, skip(sig, "no sizing row"))
			continue
		}
		if !row.Available {
			reason := row.Reason
			if reason == "" {
				reason = "unavailable"
			}
			skipped = append(skipped, skip(sig, reason))
			continue
		}
		if !positive(row.Units) || !positive(row.NotionalUSDPerUnit) || row.MarginRate == nil || !finite(*row.MarginRate) || *row.MarginRate < 0 {
			skipped = append(skipped, skip(sig, "missing sizing data"))
			continue
		}

		precision := 0
		if row.TradeUnitsPrecision != nil {
			precision = max(0, *row.TradeUnitsPrecision)
		}
		minUnits := MinUnits(precision, 0)
		if positive(row.MinUnits) {
			minUnits = *row.MinUnits
		}
		base := *row.Units
		if positive(row.RawUnits) {
			base = *row.RawUnits
		}
		instrument := row.Instrument
		if instrument == "" {
			instrument = fx.Instrument(sig.Symbol)
		}
		var price, usdPerQ float64
		if positive(row.Price) {
			price = *row.Price
			usdPerQ = *row.NotionalUSDPerUnit / price
		}

		legs = append(legs, leg{
			signal:     sig,
			instrument: instrument,
			units:      *row.Units,
			baseUnits:  base,
			precision:  precision,
			minUnits:   minUnits,
			price:      price,
			usdPerQ:    usdPerQ,
			notional:   *row.NotionalUSDPerUnit,
			marginRate: *row.MarginRate,
		})
	}

	available := sizing.NAV
	if sizing.MarginAvailable != nil && finite(*sizing.MarginAvailable) {
		available = *sizing.MarginAvailable
	}
	return finish(types.PathDelegated, sizing.NAV, available, buffer, legs, skipped), nil
}

func (s *Sizer) direct(ctx context.Context, signals []types.BasketSignal, buffer float64) (*types.SizingResult, error) {
	summary, err := s.broker.AccountSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: account summary: %v", types.ErrSizing, err)
	}
	nav := summary.NAV
	if !finite(nav) || nav <= 0 {
		return nil, fmt.Errorf("%w: invalid NAV %v", types.ErrSizing, nav)
	}

	specs, err := s.broker.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: instruments: %v", types.ErrSizing, err)
	}
	specByName := make(map[string]types.Instrument, len(specs))
	for _, spec := range specs {
		specByName[spec.Name] = spec
	}

	prices, err := s.broker.Pricing(ctx, pricingSet(signals, specByName))
	if err != nil {
		return nil, fmt.Errorf("%w: pricing: %v", types.ErrSizing, err)
	}
	priceMap := fx.BuildPriceMap(prices)

	var legs []leg
	var skipped []types.SkippedLeg
	for _, sig := range signals {
		instrument := fx.Instrument(sig.Symbol)
		spec, ok := specByName[instrument]
		if !ok {
			skipped = append(skipped, skip(sig, "instrument spec unavailable"))
			continue
		}
		if _, ok := priceMap[instrument]; !ok {
			skipped = append(skipped, skip(sig, "price unavailable"))
			continue
		}
		price, usdPerQ, ok := priceMap.NotionalUSDPerUnit(instrument)
		if !ok {
			skipped = append(skipped, skip(sig, "missing USD conversion"))
			continue
		}
		if !finite(spec.MarginRate) || spec.MarginRate < 0 {
			skipped = append(skipped, skip(sig, "missing margin rate"))
			continue
		}

		notional := price * usdPerQ
		raw := nav / notional
		precision := max(0, spec.TradeUnitsPrecision)
		legs = append(legs, leg{
			signal:     sig,
			instrument: instrument,
			units:      raw,
			baseUnits:  raw,
			precision:  precision,
			minUnits:   MinUnits(precision, spec.MinimumTradeSize),
			price:      price,
			usdPerQ:    usdPerQ,
			notional:   notional,
			marginRate: spec.MarginRate,
		})
	}

	available := nav
	if summary.MarginAvailable != nil && finite(*summary.MarginAvailable) {
		available = *summary.MarginAvailable
	}
	return finish(types.PathDirect, nav, available, buffer, legs, skipped), nil
}

// finish applies the common scale to every leg and drops what falls below the minimum.
func finish(path types.SizingPath, nav, available, buffer float64, legs []leg, skipped []types.SkippedLeg) *types.SizingResult {
	var total float64
	for _, l := range legs {
		total += l.margin()
	}
	scale := Scale(available, buffer, total)

	res := &types.SizingResult{
		NAV:             nav,
		MarginAvailable: available,
		TotalMargin:     total,
		Scale:           scale,
		Path:            path,
		Skipped:         skipped,
	}
	for _, l := range legs {
		units := Truncate(l.baseUnits*scale, l.precision)
		if units < l.minUnits || units <= 0 {
			res.Skipped = append(res.Skipped, skip(l.signal, fmt.Sprintf("below minimum sizing (%v < %v)", units, l.minUnits)))
			continue
		}
		_, quote := fx.Split(l.instrument)
		res.Plan = append(res.Plan, types.SizingPlanRow{
			Symbol:             l.signal.Symbol,
			Instrument:         l.instrument,
			Model:              l.signal.Model,
			Direction:          l.signal.Direction,
			AssetClass:         l.signal.AssetClass,
			Units:              units,
			RawUnits:           l.baseUnits,
			Precision:          l.precision,
			QuoteCurrency:      quote,
			USDPerQuote:        l.usdPerQ,
			Price:              l.price,
			NotionalUSDPerUnit: l.notional,
			MarginRate:         l.marginRate,
			MinUnits:           l.minUnits,
		})
	}
	return res
}

func skip(sig types.BasketSignal, reason string) types.SkippedLeg {
	return types.SkippedLeg{Symbol: sig.Symbol, Model: sig.Model, Reason: reason}
}

func uniqueSymbols(signals []types.BasketSignal) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range signals {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			out = append(out, s.Symbol)
		}
	}
	return out
}

// pricingSet is every traded instrument plus the USD conversion pairs their
// quote currencies need, limited to instruments the broker lists.
func pricingSet(signals []types.BasketSignal, specs map[string]types.Instrument) []string {
	set := make(map[string]bool)
	for _, sig := range signals {
		instrument := fx.Instrument(sig.Symbol)
		set[instrument] = true
		_, quote := fx.Split(instrument)
		for _, conv := range fx.ConversionPairs(quote) {
			if _, listed := specs[conv]; listed {
				set[conv] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for inst := range set {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

func positive(v *float64) bool {
	return v != nil && finite(*v) && *v > 0
}
