// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/pkg/mathutil"
)

// FindScenario finds a scenario by name in the results slice.
// Returns a pointer to the forecast if found, nil otherwise.
func FindScenario(results []forecast.Forecast, name string) *forecast.Forecast {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}

// BalanceSeries returns the cumulative balance of every year of a forecast.
func BalanceSeries(f *forecast.Forecast) []float64 {
	if f == nil || f.Result == nil {
		return nil
	}
	points := f.Result.Points()
	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.CumulativeBalance
	}
	return series
}

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return mathutil.WithinTolerance(a, b, tol)
}
