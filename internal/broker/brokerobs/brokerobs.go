package brokerobs

import (
	"context"
	"time"

	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
	"weekly-basket-bot/internal/trace"
	"weekly-basket-bot/internal/types"
)

// observableBroker wraps a Broker with logging, tracing and call metrics
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

// observe records the call's latency and outcome.
func observe(op string, start time.Time, err error) {
	metrics.ObserveBrokerCall(op, time.Since(start), err)
}

func (ob *observableBroker) AccountSummary(ctx context.Context) (types.AccountSummary, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AccountSummary")
	defer span.End()
	start := time.Now()

	sum, err := ob.broker.AccountSummary(ctx)
	observe("account_summary", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account summary", err)
		return sum, err
	}

	logger.DebugSkip(ctx, 1, "Account summary fetched", "nav", sum.NAV, "currency", sum.Currency, "open_trades", sum.OpenTradeCount)
	return sum, nil
}

func (ob *observableBroker) Instruments(ctx context.Context) ([]types.Instrument, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Instruments")
	defer span.End()
	start := time.Now()

	out, err := ob.broker.Instruments(ctx)
	observe("instruments", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch instruments", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Instruments fetched", "count", len(out))
	return out, nil
}

func (ob *observableBroker) Pricing(ctx context.Context, instruments []string) ([]types.Price, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Pricing")
	defer span.End()
	start := time.Now()

	out, err := ob.broker.Pricing(ctx, instruments)
	observe("pricing", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch pricing", err, "instruments", instruments)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Pricing fetched", "requested", len(instruments), "received", len(out))
	return out, nil
}

func (ob *observableBroker) OpenTrades(ctx context.Context) ([]types.Trade, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenTrades")
	defer span.End()
	start := time.Now()

	out, err := ob.broker.OpenTrades(ctx)
	observe("open_trades", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch open trades", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Open trades fetched", "count", len(out))
	return out, nil
}

func (ob *observableBroker) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceMarketOrder")
	defer span.End()
	start := time.Now()

	logger.InfoSkip(ctx, 1, "Placing order",
		"instrument", req.Instrument,
		"units", req.Units,
		"tag", req.Tag,
		"position_fill", req.PositionFill,
	)

	resp, err := ob.broker.PlaceMarketOrder(ctx, req)
	observe("place_order", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"instrument", req.Instrument,
			"units", req.Units,
		)
		return resp, err
	}

	logger.InfoSkip(ctx, 1, "Order filled",
		"instrument", req.Instrument,
		"order_id", resp.OrderID,
		"trade_id", resp.TradeID,
		"price", resp.Price,
	)
	return resp, nil
}

func (ob *observableBroker) CloseTrade(ctx context.Context, tradeID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CloseTrade")
	defer span.End()
	start := time.Now()

	err := ob.broker.CloseTrade(ctx, tradeID)
	observe("close_trade", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close trade", err, "trade_id", tradeID)
		return err
	}

	logger.InfoSkip(ctx, 1, "Trade closed", "trade_id", tradeID)
	return nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, instrument string, side types.CloseSide) error {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()
	start := time.Now()

	err := ob.broker.ClosePosition(ctx, instrument, side)
	observe("close_position", start, err)
	if err != nil {
		logger.WarnSkip(ctx, 1, "Failed to close position", "instrument", instrument, "side", side, "error", err)
		return err
	}

	logger.InfoSkip(ctx, 1, "Position closed", "instrument", instrument, "side", side)
	return nil
}
