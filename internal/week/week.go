// Package week computes the trading week the bot operates in. Weeks open on
// Sunday 19:00 New York time, FX stops Friday 16:30, and the week closes seven
// days after the open.
package week

import (
	"time"
	_ "time/tzdata" // America/New_York must resolve on minimal images
)

const (
	openHour      = 19
	fxCloseHour   = 16
	fxCloseMinute = 30
)

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type Window struct {
	Open    time.Time
	Close   time.Time
	FXClose time.Time
}

// ID identifies the week by its open instant in UTC.
func (w Window) ID() string {
	return w.Open.UTC().Format(time.RFC3339)
}

// Tradable reports whether now is inside [Open, FXClose).
func (w Window) Tradable(now time.Time) bool {
	return !now.Before(w.Open) && now.Before(w.FXClose)
}

// Flat reports whether now is in the flat period [FXClose, Close).
func (w Window) Flat(now time.Time) bool {
	return !now.Before(w.FXClose) && now.Before(w.Close)
}

// Current returns the week containing now. Calendar arithmetic is done in
// New York time so DST changes keep the open at 19:00 local.
func Current(now time.Time) Window {
	local := now.In(newYork)
	daysBack := int(local.Weekday() - time.Sunday)
	open := time.Date(local.Year(), local.Month(), local.Day()-daysBack, openHour, 0, 0, 0, newYork)
	if local.Before(open) {
		open = open.AddDate(0, 0, -7)
	}
	return Window{
		Open:    open,
		Close:   open.AddDate(0, 0, 7),
		FXClose: time.Date(open.Year(), open.Month(), open.Day()+5, fxCloseHour, fxCloseMinute, 0, 0, newYork),
	}
}
