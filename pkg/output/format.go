// Package output provides utilities for formatting and displaying forecast results.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report is the serializable view of one scenario forecast.
type Report struct {
	Scenario        string                     `json:"scenario"`
	Currency        string                     `json:"currency"`
	Irradiation     float64                    `json:"irradiation"`
	IrradianceYears []int                      `json:"irradianceYears,omitempty"`
	CapacityKWp     float64                    `json:"capacityKWp"`
	Production      float64                    `json:"production"`
	Input           projection.Input           `json:"input"`
	Summary         projection.Summary         `json:"summary"`
	Points          []projection.CashFlowPoint `json:"points"`
}

// BuildReports converts forecasts into their serializable form.
func BuildReports(results []forecast.Forecast) []Report {
	reports := make([]Report, 0, len(results))
	for _, result := range results {
		reports = append(reports, Report{
			Scenario:        result.Name,
			Currency:        result.Currency,
			Irradiation:     result.Irradiation.KWhPerM2,
			IrradianceYears: result.Irradiation.Years,
			CapacityKWp:     result.CapacityKWp,
			Production:      result.Production,
			Input:           result.Result.Input(),
			Summary:         result.Summary,
			Points:          result.Result.Points(),
		})
	}
	return reports
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, results []forecast.Forecast) {
	p := message.NewPrinter(language.English)
	for i, result := range results {
		s := result.Summary
		status := "not profitable"
		if s.Profitable {
			status = "profitable"
		}
		breakEven, ok := result.Result.BreakEvenYear()

		_, _ = fmt.Fprintf(w, "--- Results for scenario %s ---\n", result.Name)
		_, _ = fmt.Fprintf(w, "Irradiation: %s/m² | Capacity: %.2f kWp | Production: %s/year\n",
			format.Energy(result.Irradiation.KWhPerM2, "kWh"), result.CapacityKWp, format.Energy(result.Production, "kWh"))
		_, _ = fmt.Fprintf(w, "Result after %d years: %s (%s) | Break-even: %s\n",
			s.TargetYear, format.Amount(s.Balance, result.Currency), status, format.BreakEven(breakEven, ok, s.Horizon))
		_, _ = fmt.Fprintf(w, "Lifetime production: %s over %d years\n",
			format.Energy(result.Result.TotalProduction(), "kWh"), result.Result.Horizon())
		_, _ = fmt.Fprintf(w, "Year | Production    | Net cash flow | Balance\n")
		_, _ = fmt.Fprintf(w, "____ | _____________ | _____________ | _______\n")
		for _, point := range result.Result.Points() {
			_, _ = p.Fprintf(w, "%4d | %13.0f | %13s | %s\n",
				point.Year, point.Production, format.Precise(point.NetCashFlow), format.Precise(point.CumulativeBalance))
		}
		if i < len(results)-1 {
			_, _ = fmt.Fprintf(w, "\n")
		}
	}
}

// CsvFormat outputs in comma-separated value format, one row per year and
// one column pair per scenario. Years past a shorter scenario's horizon are
// left blank.
func CsvFormat(w io.Writer, results []forecast.Forecast) error {
	cw := csv.NewWriter(w)

	header := []string{"year"}
	maxHorizon := 0
	for _, result := range results {
		header = append(header,
			fmt.Sprintf("net (%s)", result.Name),
			fmt.Sprintf("balance (%s)", result.Name),
		)
		if h := result.Result.Horizon(); h > maxHorizon {
			maxHorizon = h
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for year := 0; year <= maxHorizon && len(results) > 0; year++ {
		row := []string{strconv.Itoa(year)}
		for _, result := range results {
			point, err := result.Result.Point(year)
			if err != nil {
				row = append(row, "", "")
				continue
			}
			row = append(row,
				strconv.FormatFloat(point.NetCashFlow, 'f', 2, 64),
				strconv.FormatFloat(point.CumulativeBalance, 'f', 2, 64),
			)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// CsvString returns the CSV output as a string.
func CsvString(results []forecast.Forecast) string {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, results); err != nil {
		return ""
	}
	return buf.String()
}

// JSONFormat outputs the reports as indented JSON.
func JSONFormat(w io.Writer, results []forecast.Forecast) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildReports(results))
}
