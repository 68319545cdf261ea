package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weekly-basket-bot/internal/types"
)

const namespace = "basketbot"

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ticks_total", Help: "Engine ticks by outcome"},
		[]string{"outcome"},
	)
	TicksDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "ticks_dropped_total", Help: "Ticks skipped because the previous one was still running"},
	)
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "tick_duration_seconds", Help: "Engine tick duration", Buckets: prometheus.DefBuckets},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "orders_total", Help: "Market orders by model, direction and result"},
		[]string{"model", "direction", "result"},
	)
	WipesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wipes_total", Help: "Close-everything runs by reason"},
		[]string{"reason"},
	)
	TrailingHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "trailing_stop_hits_total", Help: "Trailing stop exits"},
	)
	PlanLegs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "plan_legs", Help: "Legs in the last sizing plan"},
		[]string{"state"},
	)
	SizingScale = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "sizing_scale", Help: "Margin scale applied to the last plan"},
	)
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "equity", Help: "Last observed account NAV"},
	)
	LockedPct = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "trailing_locked_pct", Help: "Locked profit percent of the trailing stop"},
	)
	Phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "phase", Help: "1 for the engine's current phase"},
		[]string{"phase"},
	)
	BrokerCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "broker_call_seconds", Help: "Broker call latency", Buckets: prometheus.DefBuckets},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, TicksDropped, TickDuration,
		OrdersTotal, WipesTotal, TrailingHits,
		PlanLegs, SizingScale, Equity, LockedPct, Phase,
		BrokerCalls,
	)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveBrokerCall(op string, d time.Duration, err error) {
	BrokerCalls.WithLabelValues(op, result(err)).Observe(d.Seconds())
}

func ObserveOrder(model types.Model, dir types.Direction, err error) {
	OrdersTotal.WithLabelValues(string(model), string(dir), result(err)).Inc()
}

// ObserveTick records a finished tick.
func ObserveTick(res *types.TickResult, d time.Duration, err error) {
	TicksTotal.WithLabelValues(result(err)).Inc()
	TickDuration.Observe(d.Seconds())
	if res == nil {
		return
	}
	for _, p := range []types.Phase{types.PhaseWaiting, types.PhaseEntering, types.PhaseHolding, types.PhaseClosing} {
		v := 0.0
		if p == res.Phase {
			v = 1
		}
		Phase.WithLabelValues(string(p)).Set(v)
	}
	PlanLegs.WithLabelValues("pending").Set(float64(res.Pending))
	PlanLegs.WithLabelValues("skipped").Set(float64(res.Skipped))
	PlanLegs.WithLabelValues("planned").Set(float64(res.Planned))
	if res.LockedPct != nil {
		LockedPct.Set(*res.LockedPct)
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
