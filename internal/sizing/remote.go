package sizing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"weekly-basket-bot/internal/api"
	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/types"
)

// RemoteSizer asks the application backend to size symbols for the linked account.
type RemoteSizer struct {
	client     *api.Client
	accountKey string
	policy     retry.Policy
}

var _ interfaces.AccountSizer = (*RemoteSizer)(nil)

func NewRemoteSizer(client *api.Client, accountKey string, policy retry.Policy) *RemoteSizer {
	return &RemoteSizer{client: client, accountKey: accountKey, policy: policy}
}

type remoteSizingResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	types.AccountSizing
}

func (r *RemoteSizer) SizingRows(ctx context.Context, symbols []string) (*types.AccountSizing, error) {
	if r.accountKey == "" {
		return nil, errors.New("no linked account")
	}
	path := "/api/accounts/" + url.PathEscape(r.accountKey) + "/sizing" + api.Query("symbols", strings.Join(symbols, ","))

	resp, err := r.client.DoWithRetry(api.NewRequest(http.MethodGet, path).WithContext(ctx), r.policy)
	if err != nil {
		return nil, fmt.Errorf("sizing service: %w", err)
	}

	var out remoteSizingResponse
	if err := resp.ParseJSON(&out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("sizing service refused: %s", out.Error)
	}
	return &out.AccountSizing, nil
}
