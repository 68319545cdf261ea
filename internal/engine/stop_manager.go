package engine

import (
	"math"

	"weekly-basket-bot/internal/types"
)

// TrailOutcome is the result of one trailing stop evaluation.
type TrailOutcome struct {
	ProfitPct float64
	PeakPct   float64
	Hit       bool
}

// UpdateTrailing advances the trailing stop for the current NAV.
//
// The peak is raised when NAV exceeds it. Trailing activates once profit
// reaches startPct; from then on the lock is
// max(startPct-offsetPct, peakPct-offsetPct) and is never lowered. The stop
// is hit when trailing is active and profit is at or below the lock.
//
// Parameters:
//   - st: State with EntryEquity set; PeakEquity, TrailingActive and LockedPct are updated
//   - nav: Current account NAV
//   - startPct: Profit percent that activates trailing
//   - offsetPct: Distance of the lock below the peak, in percent points
func UpdateTrailing(st *types.BotState, nav, startPct, offsetPct float64) TrailOutcome {
	if st.EntryEquity == nil || *st.EntryEquity <= 0 {
		return TrailOutcome{}
	}
	entry := *st.EntryEquity

	peak := nav
	if st.PeakEquity != nil && *st.PeakEquity > peak {
		peak = *st.PeakEquity
	}
	st.PeakEquity = &peak

	out := TrailOutcome{
		ProfitPct: (nav - entry) / entry * 100,
		PeakPct:   (peak - entry) / entry * 100,
	}
	if out.ProfitPct >= startPct {
		st.TrailingActive = true
	}
	if !st.TrailingActive {
		return out
	}

	lock := math.Max(startPct-offsetPct, out.PeakPct-offsetPct)
	if st.LockedPct == nil || lock > *st.LockedPct {
		st.LockedPct = &lock
	}
	out.Hit = out.ProfitPct <= *st.LockedPct
	return out
}
