package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/signals"
	"weekly-basket-bot/internal/types"
)

// SnapshotFeed composes the basket from a positioning snapshot on disk. The
// file is reread on every call so an external job can replace it.
type SnapshotFeed struct {
	path   string
	assets []types.AssetClass
	now    func() time.Time
}

var _ interfaces.SignalFeed = (*SnapshotFeed)(nil)

// NewSnapshotFeed accepts "all", one asset class or a comma separated list.
func NewSnapshotFeed(path, asset string) (*SnapshotFeed, error) {
	assets, err := parseAssets(asset)
	if err != nil {
		return nil, err
	}
	return &SnapshotFeed{path: path, assets: assets, now: time.Now}, nil
}

func (f *SnapshotFeed) Latest(_ context.Context) (*types.SignalBatch, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSignalFetch, err)
	}
	var snap signals.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrSignalFetch, f.path, err)
	}
	now := f.now()
	return finish(signals.BuildBasket(&snap, f.assets, now), now)
}

func parseAssets(s string) ([]types.AssetClass, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return nil, nil
	}
	var out []types.AssetClass
	for _, part := range strings.Split(s, ",") {
		a := types.AssetClass(strings.TrimSpace(part))
		known := false
		for _, k := range types.AssetClasses {
			if a == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown asset class %q", types.ErrConfiguration, part)
		}
		out = append(out, a)
	}
	return out, nil
}
