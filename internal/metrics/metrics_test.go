package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"weekly-basket-bot/internal/types"
)

func TestObserveTickSetsPhase(t *testing.T) {
	lock := 12.5
	ObserveTick(&types.TickResult{Phase: types.PhaseHolding, Pending: 2, LockedPct: &lock}, time.Second, nil)

	if v := testutil.ToFloat64(Phase.WithLabelValues(string(types.PhaseHolding))); v != 1 {
		t.Errorf("Expected HOLDING phase gauge 1, got %v", v)
	}
	if v := testutil.ToFloat64(Phase.WithLabelValues(string(types.PhaseEntering))); v != 0 {
		t.Errorf("Expected ENTERING phase gauge 0, got %v", v)
	}
	if v := testutil.ToFloat64(LockedPct); v != 12.5 {
		t.Errorf("Expected locked pct 12.5, got %v", v)
	}
}

func TestObserveOrderCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(OrdersTotal.WithLabelValues("dealer", "LONG", "error"))
	ObserveOrder(types.ModelDealer, types.Long, errors.New("rejected"))
	after := testutil.ToFloat64(OrdersTotal.WithLabelValues("dealer", "LONG", "error"))
	if after-before != 1 {
		t.Errorf("Expected one more failed order, got %v", after-before)
	}
}

func TestMetricsRegistered(t *testing.T) {
	TicksDropped.Inc()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "basketbot_ticks_dropped_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("basketbot_ticks_dropped_total metric not found")
	}
}
