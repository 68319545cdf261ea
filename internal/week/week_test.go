package week

import (
	"testing"
	"time"
)

func TestCurrent(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		wantID string
	}{
		// 2025-03-09 is the DST switch; the open is 19:00 EDT = 23:00Z
		{"tuesday after dst", time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC), "2025-03-09T23:00:00Z"},
		{"sunday before open", time.Date(2025, 3, 16, 22, 59, 0, 0, time.UTC), "2025-03-09T23:00:00Z"},
		{"sunday at open", time.Date(2025, 3, 16, 23, 0, 0, 0, time.UTC), "2025-03-16T23:00:00Z"},
		{"winter week", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), "2025-01-06T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Current(tt.now).ID(); got != tt.wantID {
				t.Errorf("Expected %s, got %s", tt.wantID, got)
			}
		})
	}
}

func TestFlatPeriod(t *testing.T) {
	w := Current(time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC))

	// Friday 16:30 EDT = 20:30Z
	fxClose := time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)
	if !w.FXClose.Equal(fxClose) {
		t.Fatalf("Expected FX close %v, got %v", fxClose, w.FXClose.UTC())
	}
	if !w.Tradable(fxClose.Add(-time.Minute)) {
		t.Errorf("Expected a minute before FX close to be tradable")
	}
	if w.Tradable(fxClose) || !w.Flat(fxClose) {
		t.Errorf("Expected FX close to start the flat period")
	}
	if !w.Flat(w.Close.Add(-time.Second)) || w.Flat(w.Close) {
		t.Errorf("Expected the flat period to end at the week close")
	}
}
