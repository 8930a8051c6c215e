// Package format renders amounts and energy figures for display.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Amount returns a whole-unit amount with thousands separators followed by
// the currency label (e.g., "-22,550 PLN"). An empty label omits the suffix.
func Amount(value float64, currency string) string {
	rounded := math.Round(value)
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	s := printer.Sprintf("%.0f", rounded)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Precise returns an amount with two decimals and thousands separators
// (e.g., "-1,234.56").
func Precise(value float64) string {
	return printer.Sprintf("%.2f", value)
}

// Energy returns a rounded energy figure with its unit (e.g., "4,000 kWh").
func Energy(value float64, unit string) string {
	return printer.Sprintf("%.0f", math.Round(value)) + " " + unit
}

// BreakEven describes a break-even year, or the horizon it was not reached
// within (e.g., "year 9" or "> 30 years").
func BreakEven(year int, ok bool, horizon int) string {
	if !ok {
		return printer.Sprintf("> %d years", horizon)
	}
	return printer.Sprintf("year %d", year)
}
