// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/solar-forecast/pkg/constants"
)

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// GrowthFactor returns the one-period multiplier for a percentage rate,
// e.g. 10 -> 1.1.
func GrowthFactor(percentage float64) float64 {
	return 1 + percentage/constants.PercentageMultiplier
}
