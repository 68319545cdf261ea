package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"weekly-basket-bot/internal/types"
)

// Account is the linked broker account record. Nil fields fall back to the
// file configuration.
type Account struct {
	AccountKey     string
	Provider       string
	TrailStartPct  *float64
	TrailOffsetPct *float64
	TradingEnabled *bool
	AppBaseURL     string
	Analysis       *types.Telemetry
}

type Accounts struct {
	db *sql.DB
}

func NewAccounts(d *DB) *Accounts {
	return &Accounts{db: d.DB}
}

// Get returns nil, nil when the account is not linked.
func (a *Accounts) Get(ctx context.Context, key string) (*Account, error) {
	var (
		acct     = Account{AccountKey: key}
		start    sql.NullFloat64
		offset   sql.NullFloat64
		enabled  sql.NullBool
		analysis sql.NullString
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT provider, trail_start_pct, trail_offset_pct, trading_enabled, app_base_url, analysis
		FROM connected_accounts WHERE account_key = ?
	`, key).Scan(&acct.Provider, &start, &offset, &enabled, &acct.AppBaseURL, &analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", key, err)
	}
	if start.Valid {
		acct.TrailStartPct = &start.Float64
	}
	if offset.Valid {
		acct.TrailOffsetPct = &offset.Float64
	}
	if enabled.Valid {
		acct.TradingEnabled = &enabled.Bool
	}
	if analysis.Valid && analysis.String != "" {
		var t types.Telemetry
		if err := json.Unmarshal([]byte(analysis.String), &t); err != nil {
			return nil, fmt.Errorf("decode analysis %s: %w", key, err)
		}
		acct.Analysis = &t
	}
	return &acct, nil
}

// Upsert writes the account settings. The analysis column is left untouched.
func (a *Accounts) Upsert(ctx context.Context, acct Account) error {
	if acct.AccountKey == "" {
		return errors.New("account_key is required")
	}
	if acct.Provider == "" {
		acct.Provider = "oanda"
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO connected_accounts (account_key, provider, trail_start_pct, trail_offset_pct, trading_enabled, app_base_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_key) DO UPDATE SET
			provider = excluded.provider,
			trail_start_pct = excluded.trail_start_pct,
			trail_offset_pct = excluded.trail_offset_pct,
			trading_enabled = excluded.trading_enabled,
			app_base_url = excluded.app_base_url,
			updated_at = CURRENT_TIMESTAMP
	`, acct.AccountKey, acct.Provider, nullFloat(acct.TrailStartPct), nullFloat(acct.TrailOffsetPct),
		nullBool(acct.TradingEnabled), acct.AppBaseURL)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", acct.AccountKey, err)
	}
	return nil
}

// Push stores the latest telemetry in the account's analysis column. An
// unlinked account is not an error; there is simply nothing to update.
func (a *Accounts) Push(ctx context.Context, accountKey string, t types.Telemetry) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		UPDATE connected_accounts SET analysis = ?, updated_at = CURRENT_TIMESTAMP WHERE account_key = ?
	`, string(b), accountKey)
	if err != nil {
		return fmt.Errorf("push telemetry %s: %w", accountKey, err)
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
