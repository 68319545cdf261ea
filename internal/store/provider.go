package store

import (
	"context"
	"sync/atomic"
)

// AccountSource is the subset of Accounts the provider needs.
type AccountSource interface {
	Get(ctx context.Context, key string) (*Account, error)
}

// ConfigProvider hands out the current Runtime snapshot. Refresh builds a new
// snapshot and swaps it in whole; readers never see a partial update.
type ConfigProvider struct {
	cfg      *Config
	accounts AccountSource
	current  atomic.Pointer[Runtime]
}

func NewConfigProvider(cfg *Config, accounts AccountSource) *ConfigProvider {
	p := &ConfigProvider{cfg: cfg, accounts: accounts}
	rc := cfg.Runtime()
	p.current.Store(&rc)
	return p
}

func (p *ConfigProvider) Current() Runtime {
	return *p.current.Load()
}

// Refresh rereads the linked account record. On error the previous snapshot
// stays in place.
func (p *ConfigProvider) Refresh(ctx context.Context) (Runtime, error) {
	rc := p.cfg.Runtime()
	if p.accounts != nil && p.cfg.AccountKey != "" {
		acct, err := p.accounts.Get(ctx, p.cfg.AccountKey)
		if err != nil {
			return p.Current(), err
		}
		rc = rc.WithAccount(acct)
	}
	p.current.Store(&rc)
	return rc, nil
}
