package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-basket-bot/internal/broker/paper"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/tag"
	"weekly-basket-bot/internal/types"
)

type memStates struct {
	states map[string]types.BotState
	saves  int
}

func newMemStates() *memStates {
	return &memStates{states: map[string]types.BotState{}}
}

func (m *memStates) Load(_ context.Context, botID string) (*types.BotState, error) {
	st, ok := m.states[botID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *memStates) Save(_ context.Context, botID string, st *types.BotState) error {
	m.saves++
	m.states[botID] = *st
	return nil
}

type stubFeed struct {
	err error
}

func (f *stubFeed) Latest(context.Context) (*types.SignalBatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.SignalBatch{TradingAllowed: true}, nil
}

type stubSizer struct {
	plan    []types.SizingPlanRow
	skipped []types.SkippedLeg
	err     error
}

func (s *stubSizer) BuildPlan(context.Context, []types.BasketSignal, float64) (*types.SizingResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.SizingResult{Plan: s.plan, Skipped: s.skipped, Scale: 1, NAV: 10000}, nil
}

func row(symbol, instrument string, model types.Model, dir types.Direction, units float64) types.SizingPlanRow {
	return types.SizingPlanRow{Symbol: symbol, Instrument: instrument, Model: model, Direction: dir, Units: units}
}

var basePlan = []types.SizingPlanRow{
	row("EURUSD", "EUR_USD", types.ModelDealer, types.Long, 1000),
	row("EURUSD", "EUR_USD", types.ModelSentiment, types.Short, 1000),
	row("GBPUSD", "GBP_USD", types.ModelDealer, types.Long, 1000),
}

type harness struct {
	eng    *Engine
	broker *paper.Broker
	states *memStates
	feed   *stubFeed
	sizer  *stubSizer
	now    time.Time
	rc     store.Runtime
}

// Wednesday, inside the trading window.
var midweek = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		broker: paper.New(paper.Config{
			Balance: 10000,
			Instruments: []paper.InstrumentConfig{
				{Name: "EUR_USD", Bid: 1.0999, Ask: 1.1001, MarginRate: 0.05},
				{Name: "GBP_USD", Bid: 1.2999, Ask: 1.3001, MarginRate: 0.05},
			},
		}),
		states: newMemStates(),
		feed:   &stubFeed{},
		sizer:  &stubSizer{plan: basePlan},
		now:    midweek,
		rc: store.Runtime{
			BotID:          "test",
			TrailStartPct:  10,
			TrailOffsetPct: 2,
			MarginBuffer:   0.1,
			TradingEnabled: true,
			TagPrefix:      tag.DefaultPrefix,
		},
	}
	h.broker.SetClock(func() time.Time { return h.now })
	h.eng = newEngine(Deps{Broker: h.broker, Feed: h.feed, Sizer: h.sizer, States: h.states},
		WithClock(func() time.Time { return h.now }),
		WithPacer(nil),
		WithWipePolicy(retry.NoWait()),
	)
	return h
}

func (h *harness) tick(t *testing.T) (*types.TickResult, error) {
	t.Helper()
	return h.eng.Tick(context.Background(), h.rc)
}

func (h *harness) state() types.BotState {
	return h.states.states[h.rc.BotID]
}

func (h *harness) openTrades(t *testing.T) []types.Trade {
	t.Helper()
	trades, err := h.broker.OpenTrades(context.Background())
	require.NoError(t, err)
	return trades
}

func managedTag(symbol string, model types.Model, nonce string) string {
	return tag.Tag{Prefix: tag.DefaultPrefix, Symbol: symbol, Model: model, Nonce: nonce}.Encode()
}

func assertUniqueLegKeys(t *testing.T, trades []types.Trade) {
	t.Helper()
	managed, _ := partition(trades, tag.DefaultPrefix)
	seen := map[types.LegKey]string{}
	for _, m := range managed {
		if other, ok := seen[m.Key]; ok {
			t.Errorf("Expected unique leg keys, trades %s and %s share %s", other, m.ID, m.Key)
		}
		seen[m.Key] = m.ID
	}
}

func TestTickEntryIsIdempotent(t *testing.T) {
	h := newHarness(t)

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Placed)
	assert.Equal(t, 0, res.Pending)
	assert.True(t, res.Entered)
	assert.Equal(t, types.PhaseHolding, res.Phase)

	st := h.state()
	require.NotNil(t, st.EntryEquity)
	assert.Equal(t, 10000.0, *st.EntryEquity)
	require.NotNil(t, st.EntryTimeUTC)

	orders, _ := h.broker.Calls()
	res, err = h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Placed)
	after, _ := h.broker.Calls()
	if after != orders {
		t.Errorf("Expected no new orders on the second tick, got %d", after-orders)
	}
	assertUniqueLegKeys(t, h.openTrades(t))
}

func TestTickTagsAndSides(t *testing.T) {
	h := newHarness(t)
	_, err := h.tick(t)
	require.NoError(t, err)

	trades := h.openTrades(t)
	require.Len(t, trades, 3)
	managed, unmanaged := partition(trades, tag.DefaultPrefix)
	assert.Empty(t, unmanaged)

	keys := openLegs(managed)
	for _, r := range basePlan {
		assert.True(t, keys[r.Key()], "missing leg %s", r.Key())
	}
}

func TestTickWipesUnmanagedExposure(t *testing.T) {
	h := newHarness(t)
	h.broker.Inject(types.Trade{Instrument: "EUR_USD", CurrentUnits: 5000, Tag: "manual"})
	h.broker.Inject(types.Trade{Instrument: "GBP_USD", CurrentUnits: -200})

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.True(t, res.ClosedAll)
	assert.Equal(t, 3, res.Placed)

	trades := h.openTrades(t)
	_, unmanaged := partition(trades, tag.DefaultPrefix)
	assert.Empty(t, unmanaged)
	assert.Len(t, trades, 3)
}

func TestTickClosesDuplicateLegs(t *testing.T) {
	h := newHarness(t)
	h.broker.Inject(types.Trade{ID: "7", Instrument: "EUR_USD", CurrentUnits: 1000,
		Tag: managedTag("EURUSD", types.ModelDealer, "aaaaaaaa"), OpenTime: midweek.Add(-2 * time.Hour)})
	h.broker.Inject(types.Trade{ID: "8", Instrument: "EUR_USD", CurrentUnits: 1000,
		Tag: managedTag("EURUSD", types.ModelDealer, "bbbbbbbb"), OpenTime: midweek.Add(-time.Hour)})

	res, err := h.tick(t)
	require.NoError(t, err)
	// the kept dealer leg is not re-ordered
	assert.Equal(t, 2, res.Placed)

	trades := h.openTrades(t)
	assertUniqueLegKeys(t, trades)
	ids := map[string]bool{}
	for _, tr := range trades {
		ids[tr.ID] = true
	}
	assert.True(t, ids["7"], "expected the oldest duplicate to be kept")
	assert.False(t, ids["8"], "expected the newer duplicate to be closed")
}

func TestTickFailFast(t *testing.T) {
	h := newHarness(t)
	h.broker.SetFaults(paper.Faults{RejectOrdersAfter: 1})

	res, err := h.tick(t)
	if !errors.Is(err, types.ErrOrder) {
		t.Fatalf("Expected ErrOrder, got %v", err)
	}
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Pending)
	assert.False(t, res.Entered)
	assert.Equal(t, types.PhaseEntering, res.Phase)
	orders, _ := h.broker.Calls()
	assert.Equal(t, 2, orders, "no legs are tried after the first failure")

	h.broker.SetFaults(paper.Faults{})
	res, err = h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Placed)
	assert.True(t, res.Entered)
	assertUniqueLegKeys(t, h.openTrades(t))
}

func TestTickFailsClosedWhenTagsAreLost(t *testing.T) {
	h := newHarness(t)
	h.broker.SetFaults(paper.Faults{DropTags: true})

	res, err := h.tick(t)
	if !errors.Is(err, types.ErrTaggingIntegrity) {
		t.Fatalf("Expected ErrTaggingIntegrity, got %v", err)
	}
	assert.Equal(t, 3, res.Pending)
	assert.False(t, res.Entered)
	assert.True(t, res.ClosedAll)
	assert.Empty(t, h.openTrades(t))
	assert.False(t, h.state().Entered)
}

func TestTickKillSwitch(t *testing.T) {
	h := newHarness(t)
	h.rc.TradingEnabled = false

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Placed)
	assert.Equal(t, 3, res.Pending)
	assert.Equal(t, "trading disabled", res.Reason)
	orders, _ := h.broker.Calls()
	assert.Equal(t, 0, orders)
}

func TestTickEmptyPlan(t *testing.T) {
	h := newHarness(t)
	h.sizer.plan = nil
	h.sizer.skipped = []types.SkippedLeg{{Symbol: "EURUSD", Model: types.ModelDealer, Reason: "price unavailable"}}

	res, err := h.tick(t)
	if !errors.Is(err, types.ErrEmptyPlan) {
		t.Fatalf("Expected ErrEmptyPlan, got %v", err)
	}
	assert.Equal(t, 1, res.Skipped)
	// state is still persisted
	assert.Equal(t, 1, h.states.saves)
}

func TestTickSkippedLegsKeepEntryPending(t *testing.T) {
	h := newHarness(t)
	h.sizer.skipped = []types.SkippedLeg{{Symbol: "AUDUSD", Model: types.ModelDealer, Reason: "missing USD conversion"}}

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Placed)
	assert.Equal(t, 1, res.Pending)
	assert.False(t, res.Entered)
}

func TestTickSignalFailureStillPersists(t *testing.T) {
	h := newHarness(t)
	h.feed.err = types.ErrTradingNotAllowed

	res, err := h.tick(t)
	assert.ErrorIs(t, err, types.ErrSignalFetch)
	assert.Equal(t, 0, res.Placed)
	assert.Equal(t, 1, h.states.saves)
	require.NotNil(t, h.state().WeekID)
}

func TestTickTrailingStopForcesClose(t *testing.T) {
	h := newHarness(t)
	_, err := h.tick(t)
	require.NoError(t, err)

	st := h.state()
	entry, peak, lock := 10000.0, 11000.0, 8.0
	st.EntryEquity, st.PeakEquity, st.LockedPct = &entry, &peak, &lock
	st.TrailingActive = true
	h.states.states[h.rc.BotID] = st

	// profit 8.1 stays above the lock
	h.broker.SetBalance(10810)
	res, err := h.tick(t)
	require.NoError(t, err)
	assert.False(t, res.TrailHit)
	assert.Len(t, h.openTrades(t), 3)

	// profit 7.9 is below the lock
	h.now = h.now.Add(time.Minute)
	h.broker.SetBalance(10790)
	res, err = h.tick(t)
	require.NoError(t, err)
	assert.True(t, res.TrailHit)
	assert.Empty(t, h.openTrades(t))

	st = h.state()
	assert.False(t, st.Entered)
	require.NotNil(t, st.TrailHitAt)
	assert.Equal(t, h.now.UTC(), *st.TrailHitAt)
	assert.Equal(t, 8.0, *st.LockedPct)

	// no re-entry for the rest of the week
	orders, _ := h.broker.Calls()
	h.now = h.now.Add(time.Minute)
	res, err = h.tick(t)
	require.NoError(t, err)
	after, _ := h.broker.Calls()
	assert.Equal(t, orders, after)
	assert.Equal(t, types.PhaseWaiting, res.Phase)
}

func TestTickWeekRollover(t *testing.T) {
	h := newHarness(t)
	prevWeek := "2025-03-09T23:00:00Z"
	entry, peak, lock, cur := 10000.0, 12000.0, 15.0, 11000.0
	hit := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	h.states.states[h.rc.BotID] = types.BotState{
		WeekID: &prevWeek, Entered: true, EntryEquity: &entry, PeakEquity: &peak,
		TrailingActive: true, LockedPct: &lock, TrailHitAt: &hit, CurrentEquity: &cur,
	}
	h.rc.TradingEnabled = false
	// just after the next Sunday open (19:00 EDT)
	h.now = time.Date(2025, 3, 16, 23, 0, 30, 0, time.UTC)

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-16T23:00:00Z", res.WeekID)

	st := h.state()
	assert.Equal(t, "2025-03-16T23:00:00Z", *st.WeekID)
	assert.False(t, st.Entered)
	assert.Nil(t, st.EntryEquity)
	assert.Nil(t, st.PeakEquity)
	assert.False(t, st.TrailingActive)
	assert.Nil(t, st.LockedPct)
	assert.Nil(t, st.TrailHitAt)
	require.NotNil(t, st.CurrentEquity)
	assert.Equal(t, 10000.0, *st.CurrentEquity)
}

func TestTickFlatPeriodClosesEverything(t *testing.T) {
	h := newHarness(t)
	_, err := h.tick(t)
	require.NoError(t, err)
	require.Len(t, h.openTrades(t), 3)

	// Friday 17:00 EDT, after the FX close
	h.now = time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)
	orders, _ := h.broker.Calls()
	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseWaiting, res.Phase)
	assert.True(t, res.ClosedAll)
	assert.Empty(t, h.openTrades(t))
	after, _ := h.broker.Calls()
	assert.Equal(t, orders, after)
}

func TestWipeFallsBackToTradeClose(t *testing.T) {
	h := newHarness(t)
	_, err := h.tick(t)
	require.NoError(t, err)

	h.broker.SetFaults(paper.Faults{FailClosePosition: true})
	require.NoError(t, h.eng.wipe(context.Background(), "w", wipeUnmanaged))
	assert.Empty(t, h.openTrades(t))
}

func TestWipeReportsStuckTrades(t *testing.T) {
	h := newHarness(t)
	h.broker.Inject(types.Trade{ID: "55", Instrument: "EUR_USD", CurrentUnits: 100})
	h.broker.SetFaults(paper.Faults{StuckTrades: map[string]bool{"55": true}})

	err := h.eng.wipe(context.Background(), "w", wipeUnmanaged)
	if !errors.Is(err, types.ErrReconciliation) {
		t.Fatalf("Expected ErrReconciliation, got %v", err)
	}
}

func TestHedgeOrder(t *testing.T) {
	legs := []types.SizingPlanRow{
		row("EURUSD", "EUR_USD", types.ModelDealer, types.Long, 1),
		row("EURUSD", "EUR_USD", types.ModelBlended, types.Long, 1),
		row("GBPUSD", "GBP_USD", types.ModelDealer, types.Short, 1),
		row("EURUSD", "EUR_USD", types.ModelSentiment, types.Short, 1),
	}
	got := hedgeOrder(legs)

	want := []types.LegKey{
		{Symbol: "EURUSD", Model: types.ModelBlended, Direction: types.Long},
		{Symbol: "EURUSD", Model: types.ModelSentiment, Direction: types.Short},
		{Symbol: "EURUSD", Model: types.ModelDealer, Direction: types.Long},
		{Symbol: "GBPUSD", Model: types.ModelDealer, Direction: types.Short},
	}
	require.Len(t, got, len(want))
	for i := range want {
		if got[i].Key() != want[i] {
			t.Errorf("position %d: Expected %s, got %s", i, want[i], got[i].Key())
		}
	}
}

func TestCloseSide(t *testing.T) {
	long := types.Trade{CurrentUnits: 10}
	short := types.Trade{CurrentUnits: -10}
	assert.Equal(t, types.CloseBoth, closeSide([]types.Trade{long, short}))
	assert.Equal(t, types.CloseLong, closeSide([]types.Trade{long}))
	assert.Equal(t, types.CloseShort, closeSide([]types.Trade{short, short}))
}

func TestTickLowercasePlanSymbolStaysIdempotent(t *testing.T) {
	h := newHarness(t)
	h.sizer.plan = []types.SizingPlanRow{row(" eurusd", "EUR_USD", types.ModelDealer, types.Long, 1000)}

	res, err := h.tick(t)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 0, res.Pending)
	assert.True(t, res.Entered)

	for i := 0; i < 2; i++ {
		orders, closes := h.broker.Calls()
		res, err = h.tick(t)
		require.NoError(t, err)
		after, afterCloses := h.broker.Calls()
		if after != orders || afterCloses != closes {
			t.Errorf("Expected no orders or closes on tick %d, got %d orders and %d closes", i+2, after-orders, afterCloses-closes)
		}
		assert.True(t, res.Entered)
	}
	trades := h.openTrades(t)
	assert.Len(t, trades, 1)
	assertUniqueLegKeys(t, trades)
}

func TestTickSkipsLegsThatCannotBeTagged(t *testing.T) {
	h := newHarness(t)
	h.sizer.plan = []types.SizingPlanRow{
		row("BTC-USD", "BTC_USD", types.ModelDealer, types.Long, 1),
		row("EURUSD", "EUR_USD", types.ModelDealer, types.Long, 1000),
	}

	for i := 0; i < 2; i++ {
		res, err := h.tick(t)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Failed)
		assert.Equal(t, 1, res.Planned)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, res.Pending)
	}

	trades := h.openTrades(t)
	require.Len(t, trades, 1)
	assert.Equal(t, "EUR_USD", trades[0].Instrument)
	assert.Len(t, h.sizer.plan, 2, "sizer result must not be mutated")
}
