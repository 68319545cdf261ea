// Package feed provides the week's basket signals, either from the application
// backend or composed locally from a positioning snapshot file.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"weekly-basket-bot/internal/api"
	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/types"
	"weekly-basket-bot/internal/week"
)

type HTTPFeed struct {
	client *api.Client
	asset  string
	policy retry.Policy
	now    func() time.Time
}

var _ interfaces.SignalFeed = (*HTTPFeed)(nil)

func NewHTTPFeed(client *api.Client, asset string, policy retry.Policy) *HTTPFeed {
	if asset == "" {
		asset = "all"
	}
	return &HTTPFeed{client: client, asset: asset, policy: policy, now: time.Now}
}

// Latest fetches the current basket. A batch that does not allow trading is
// returned along with types.ErrTradingNotAllowed.
func (f *HTTPFeed) Latest(ctx context.Context) (*types.SignalBatch, error) {
	req := api.NewRequest(http.MethodGet, "/api/cot/baskets/latest"+api.Query("asset", f.asset)).WithContext(ctx)
	resp, err := f.client.DoWithRetry(req, f.policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSignalFetch, err)
	}

	var batch types.SignalBatch
	if err := resp.ParseJSON(&batch); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSignalFetch, err)
	}
	return finish(&batch, f.now())
}

// finish drops rows the engine cannot act on and applies the trading gate.
func finish(batch *types.SignalBatch, now time.Time) (*types.SignalBatch, error) {
	if batch.WeekOpenUTC == "" {
		batch.WeekOpenUTC = week.Current(now).ID()
	}
	kept := batch.Pairs[:0]
	for _, s := range batch.Pairs {
		s.Symbol = types.NormalizeSymbol(s.Symbol)
		if s.Symbol == "" || !s.Model.Valid() {
			continue
		}
		if s.Direction != types.Long && s.Direction != types.Short {
			continue
		}
		kept = append(kept, s)
	}
	batch.Pairs = kept

	if !batch.TradingAllowed {
		reason := batch.Reason
		if reason == "" {
			reason = "trading not allowed"
		}
		return batch, fmt.Errorf("%w (report %s: %s)", types.ErrTradingNotAllowed, batch.ReportDate, reason)
	}
	return batch, nil
}
