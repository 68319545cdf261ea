// Package oanda is a client for the OANDA v3 REST API, limited to what a
// hedged basket needs: account summary, instruments, pricing, open trades,
// market orders and closes.
package oanda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"weekly-basket-bot/internal/api"
	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/types"
)

const (
	PracticeURL = "https://api-fxpractice.oanda.com"
	LiveURL     = "https://api-fxtrade.oanda.com"
)

type Params struct {
	Env               string // practice or live
	AccountID         string
	APIKey            string
	BaseURL           string // overrides Env when set
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             retry.Policy
}

type Client struct {
	p       Params
	http    *api.Client
	limiter *rate.Limiter
}

var _ interfaces.Broker = (*Client)(nil)

func New(p Params) (*Client, error) {
	if p.AccountID == "" || p.APIKey == "" {
		return nil, fmt.Errorf("%w: OANDA account id and API key are required", types.ErrConfiguration)
	}
	base := p.BaseURL
	if base == "" {
		switch strings.ToLower(p.Env) {
		case "live":
			base = LiveURL
		case "", "practice":
			base = PracticeURL
		default:
			return nil, fmt.Errorf("%w: unknown OANDA env %q", types.ErrConfiguration, p.Env)
		}
	}
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Second
	}
	if p.RequestsPerSecond <= 0 {
		p.RequestsPerSecond = 10
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry = retry.Default()
	}

	limiter := rate.NewLimiter(rate.Limit(p.RequestsPerSecond), 1)
	c := &Client{p: p, limiter: limiter}
	c.http = api.NewClient(
		api.WithBaseURL(base),
		api.WithTimeout(p.Timeout),
		api.WithBearerToken(p.APIKey),
		api.WithHeader("Accept-Datetime-Format", "RFC3339"),
		api.WithBeforeRequest(limiter.Wait),
		api.WithLogging(true),
	)
	return c, nil
}

func (c *Client) accountPath(suffix string) string {
	return "/v3/accounts/" + url.PathEscape(c.p.AccountID) + suffix
}

// get retries transient failures; writes never are, since a retried order
// could open a duplicate leg.
func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.http.DoWithRetry(api.NewRequest(http.MethodGet, path).WithContext(ctx), c.p.Retry)
	if err != nil {
		return err
	}
	return resp.ParseJSON(out)
}

func (c *Client) AccountSummary(ctx context.Context) (types.AccountSummary, error) {
	var w accountWire
	if err := c.get(ctx, c.accountPath("/summary"), &w); err != nil {
		return types.AccountSummary{}, fmt.Errorf("account summary: %w", err)
	}
	return w.summary(), nil
}

func (c *Client) Instruments(ctx context.Context) ([]types.Instrument, error) {
	var w instrumentsWire
	if err := c.get(ctx, c.accountPath("/instruments"), &w); err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	return w.instruments(), nil
}

func (c *Client) Pricing(ctx context.Context, instruments []string) ([]types.Price, error) {
	if len(instruments) == 0 {
		return nil, nil
	}
	var w pricingWire
	path := c.accountPath("/pricing") + api.Query("instruments", strings.Join(instruments, ","))
	if err := c.get(ctx, path, &w); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	return w.prices(), nil
}

func (c *Client) OpenTrades(ctx context.Context) ([]types.Trade, error) {
	var w tradesWire
	if err := c.get(ctx, c.accountPath("/openTrades"), &w); err != nil {
		return nil, fmt.Errorf("open trades: %w", err)
	}
	return w.trades(), nil
}

// PlaceMarketOrder sends a fill-or-kill market order. The tag is attached to
// both the order and the trade it opens, since only trade extensions show up
// on open trades.
func (c *Client) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	fill := req.PositionFill
	if fill == "" {
		fill = types.DefaultFill
	}
	order := marketOrder{
		Type:         "MARKET",
		Instrument:   req.Instrument,
		Units:        formatUnits(req.Units),
		TimeInForce:  "FOK",
		PositionFill: string(fill),
	}
	if req.Tag != "" {
		order.ClientExtensions = &clientExtensions{ID: req.Tag, Tag: req.Tag}
		order.TradeClientExtensions = &clientExtensions{Tag: req.Tag}
	}

	resp, err := c.http.POST(ctx, c.accountPath("/orders"), orderRequestWire{Order: order})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("%w: %s %s: %v", types.ErrOrder, req.Instrument, order.Units, err)
	}

	var w orderResponseWire
	if err := resp.ParseJSON(&w); err != nil {
		return types.OrderResp{}, fmt.Errorf("%w: %s: %v", types.ErrOrder, req.Instrument, err)
	}
	if w.OrderFillTransaction == nil {
		reason := "no fill"
		if w.OrderCancelTransaction != nil {
			reason = w.OrderCancelTransaction.Reason
		}
		return types.OrderResp{}, fmt.Errorf("%w: %s cancelled: %s", types.ErrOrder, req.Instrument, reason)
	}

	out := types.OrderResp{
		OrderID: w.OrderCreateTransaction.ID,
		Status:  "FILLED",
		Units:   req.Units,
		Price:   num(w.OrderFillTransaction.Price),
	}
	if opened := w.OrderFillTransaction.TradeOpened; opened != nil {
		out.TradeID = opened.TradeID
		out.Units = num(opened.Units)
	}
	return out, nil
}

func (c *Client) CloseTrade(ctx context.Context, tradeID string) error {
	path := c.accountPath("/trades/" + url.PathEscape(tradeID) + "/close")
	if _, err := c.http.PUT(ctx, path, map[string]string{"units": "ALL"}); err != nil {
		// 404 means the trade closed between the listing and this call.
		if api.IsStatus(err, http.StatusNotFound) {
			logger.Info(ctx, "Trade already closed", "trade_id", tradeID)
			return nil
		}
		return fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	return nil
}

func (c *Client) ClosePosition(ctx context.Context, instrument string, side types.CloseSide) error {
	var body positionCloseWire
	switch side {
	case types.CloseLong:
		body.LongUnits = "ALL"
	case types.CloseShort:
		body.ShortUnits = "ALL"
	case types.CloseBoth:
		body.LongUnits, body.ShortUnits = "ALL", "ALL"
	default:
		return errors.New("unknown close side " + string(side))
	}

	path := c.accountPath("/positions/" + url.PathEscape(instrument) + "/close")
	if _, err := c.http.PUT(ctx, path, body); err != nil {
		return fmt.Errorf("close position %s %s: %w", instrument, side, err)
	}
	return nil
}
