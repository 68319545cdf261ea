package types

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers wrap them with %w and match with errors.Is.
// ErrConfiguration is fatal at startup; everything else fails a single tick.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrSignalFetch       = errors.New("signal fetch failed")
	ErrTradingNotAllowed = fmt.Errorf("%w: trading not allowed", ErrSignalFetch)
	ErrSizing            = errors.New("sizing failed")
	ErrEmptyPlan         = fmt.Errorf("%w: empty plan", ErrSizing)
	ErrOrder             = errors.New("order rejected")
	ErrReconciliation    = errors.New("reconciliation failed")
	ErrTaggingIntegrity  = errors.New("tagging integrity violated")
)
