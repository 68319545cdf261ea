package sizing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the factor every leg is multiplied by so that the gross margin of
// the basket fits inside the buffered available margin. It never exceeds 1.
func Scale(available, buffer, totalMargin float64) float64 {
	if totalMargin <= 0 || !finite(totalMargin) {
		return 1
	}
	s := available * (1 - buffer) / totalMargin
	if s > 1 {
		return 1
	}
	if s < 0 || !finite(s) {
		return 0
	}
	return s
}

// Truncate cuts units down to precision decimal places. It never rounds up.
func Truncate(units float64, precision int) float64 {
	if !finite(units) || units <= 0 {
		return 0
	}
	if precision < 0 {
		precision = 0
	}
	return decimal.NewFromFloat(units).Truncate(int32(precision)).InexactFloat64()
}

// MinUnits is the smallest tradable size: the broker minimum when reported,
// otherwise one step of the unit precision.
func MinUnits(precision int, minimumTradeSize float64) float64 {
	if finite(minimumTradeSize) && minimumTradeSize > 0 {
		return minimumTradeSize
	}
	if precision <= 0 {
		return 1
	}
	return decimal.New(1, -int32(precision)).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
