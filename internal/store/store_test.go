package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-basket-bot/internal/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestStateStoreLoadMissing(t *testing.T) {
	s := NewStateStore(openTestDB(t))
	st, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStateStoreRoundTripKeepsNulls(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(openTestDB(t))
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	week := "2025-03-09T23:00:00Z"
	equity := 10000.0
	in := &types.BotState{WeekID: &week, Entered: true, EntryEquity: &equity}
	require.NoError(t, s.Save(ctx, "bot-a", in))

	out, err := s.Load(ctx, "bot-a")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, week, *out.WeekID)
	assert.True(t, out.Entered)
	assert.Equal(t, equity, *out.EntryEquity)
	assert.Nil(t, out.PeakEquity)
	assert.Nil(t, out.TrailHitAt)
	assert.Equal(t, s.now(), out.UpdatedAt)

	// second save overwrites, one record per bot
	out.Entered = false
	require.NoError(t, s.Save(ctx, "bot-a", out))
	again, err := s.Load(ctx, "bot-a")
	require.NoError(t, err)
	assert.False(t, again.Entered)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM bot_states`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestAccountsPushAndGet(t *testing.T) {
	ctx := context.Background()
	a := NewAccounts(openTestDB(t))

	missing, err := a.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	start, on := 15.0, true
	require.NoError(t, a.Upsert(ctx, Account{AccountKey: "acct-1", TrailStartPct: &start, TradingEnabled: &on}))

	tel := types.Telemetry{Equity: 10250.5, Currency: "USD", OpenPositions: 2, FetchedAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, a.Push(ctx, "acct-1", tel))
	// unknown accounts are ignored
	require.NoError(t, a.Push(ctx, "acct-2", tel))

	acct, err := a.Get(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "oanda", acct.Provider)
	assert.Equal(t, 15.0, *acct.TrailStartPct)
	assert.Nil(t, acct.TrailOffsetPct)
	assert.True(t, *acct.TradingEnabled)
	require.NotNil(t, acct.Analysis)
	assert.Equal(t, 10250.5, acct.Analysis.Equity)
	assert.Equal(t, 2, acct.Analysis.OpenPositions)
}

const minimalConfig = `
bot_id: test-bot
mode: PAPER
signals:
  source: SNAPSHOT
  snapshot_path: testdata/snapshot.json
`

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("OANDA_TRADING_ENABLED", "")
	cfg, err := ParseConfig([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.TickSeconds)
	assert.Equal(t, 0.1, cfg.Sizing.MarginBuffer)
	assert.Equal(t, 20.0, cfg.Trailing.StartPct)
	assert.Equal(t, 10.0, cfg.Trailing.OffsetPct)
	assert.Equal(t, "uni", cfg.Execution.TagPrefix)
	assert.Equal(t, 3, cfg.Execution.WipeSweeps)
	assert.False(t, cfg.TradingEnabled)

	rc := cfg.Runtime()
	assert.Equal(t, 30*time.Second, rc.TickInterval)
	assert.Equal(t, "test-bot", rc.BotID)
}

func TestParseConfigKeepsExplicitZeros(t *testing.T) {
	t.Setenv("OANDA_MARGIN_BUFFER", "")
	t.Setenv("OANDA_TRAIL_OFFSET_PCT", "")
	cfg, err := ParseConfig([]byte(minimalConfig + `
sizing:
  margin_buffer: 0
trailing:
  offset_pct: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Sizing.MarginBuffer)
	assert.Equal(t, 0.0, cfg.Trailing.OffsetPct)
	assert.Equal(t, 20.0, cfg.Trailing.StartPct)

	rc := cfg.Runtime()
	assert.Equal(t, 0.0, rc.MarginBuffer)
	assert.Equal(t, 0.0, rc.TrailOffsetPct)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad mode", "mode: DRY\nsignals: {source: SNAPSHOT, snapshot_path: x}"},
		{"http without base url", "signals: {source: HTTP}"},
		{"bad buffer", "sizing: {margin_buffer: 1.5}\nsignals: {source: SNAPSHOT, snapshot_path: x}"},
		{"broken yaml", "mode: [PAPER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestEnvKillSwitchWinsOverAccount(t *testing.T) {
	t.Setenv("OANDA_TRADING_ENABLED", "false")
	cfg, err := ParseConfig([]byte(minimalConfig))
	require.NoError(t, err)

	on, start := true, 12.0
	rc := cfg.Runtime().WithAccount(&Account{TradingEnabled: &on, TrailStartPct: &start, AppBaseURL: "https://app.example"})
	assert.False(t, rc.TradingEnabled)
	assert.Equal(t, 12.0, rc.TrailStartPct)
	assert.Equal(t, "https://app.example", rc.AppBaseURL)
}

func TestConfigProviderRefresh(t *testing.T) {
	t.Setenv("OANDA_TRADING_ENABLED", "")
	ctx := context.Background()
	cfg, err := ParseConfig([]byte(minimalConfig + "account_key: acct-1\n"))
	require.NoError(t, err)

	accounts := NewAccounts(openTestDB(t))
	p := NewConfigProvider(cfg, accounts)
	assert.False(t, p.Current().TradingEnabled)

	on, offset := true, 5.0
	require.NoError(t, accounts.Upsert(ctx, Account{AccountKey: "acct-1", TradingEnabled: &on, TrailOffsetPct: &offset}))

	rc, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, rc.TradingEnabled)
	assert.Equal(t, 5.0, p.Current().TrailOffsetPct)
}
