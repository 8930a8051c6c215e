package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
)

func makeForecast(t *testing.T, name string, in projection.Input, target int) forecast.Forecast {
	t.Helper()
	result, err := projection.Project(in)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	summary, err := result.Summary(target)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	return forecast.Forecast{
		Name:        name,
		Currency:    "PLN",
		Irradiation: irradiance.Reading{KWhPerM2: 1000, Years: []int{2022}},
		CapacityKWp: 5,
		Production:  in.AnnualProduction,
		Result:      result,
		Summary:     summary,
	}
}

func sampleResults(t *testing.T) []forecast.Forecast {
	return []forecast.Forecast{
		makeForecast(t, "long", projection.NewInput(1000, 3000, 1, 0, 5), 4),
		makeForecast(t, "short", projection.NewInput(4000, 25000, 1.1, 10, 2), 2),
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	PrettyFormat(&buf, sampleResults(t))
	out := buf.String()

	expectations := []string{
		"--- Results for scenario long ---",
		"--- Results for scenario short ---",
		"Production: 1,000 kWh/year",
		"Result after 4 years: 1,000 PLN (profitable) | Break-even: year 3",
		"Break-even: > 2 years",
		"(not profitable)",
		"-25,000.00",
		"Lifetime production: 5,000 kWh over 5 years",
		"Lifetime production: 8,000 kWh over 2 years",
	}
	for _, expected := range expectations {
		if !strings.Contains(out, expected) {
			t.Errorf("pretty output missing %q:\n%s", expected, out)
		}
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, sampleResults(t)); err != nil {
		t.Fatalf("CsvFormat() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV output: %v", err)
	}

	// header + years 0..5
	if len(records) != 7 {
		t.Fatalf("expected 7 records, got %d", len(records))
	}
	expectedHeader := []string{"year", "net (long)", "balance (long)", "net (short)", "balance (short)"}
	for i, col := range expectedHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, expected %q", i, records[0][i], col)
		}
	}
	if records[1][2] != "-3000.00" || records[1][4] != "-25000.00" {
		t.Errorf("year 0 row = %v", records[1])
	}
	if records[2][1] != "1000.00" || records[2][3] != "4400.00" {
		t.Errorf("year 1 row = %v", records[2])
	}
	// "short" stops at year 2
	if records[6][3] != "" || records[6][4] != "" {
		t.Errorf("expected blanks past horizon, got %v", records[6])
	}
}

func TestCsvStringEmpty(t *testing.T) {
	if got := CsvString(nil); got != "year\n" {
		t.Errorf("CsvString(nil) = %q, expected header only", got)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONFormat(&buf, sampleResults(t)); err != nil {
		t.Fatalf("JSONFormat() error = %v", err)
	}

	var reports []Report
	if err := json.Unmarshal(buf.Bytes(), &reports); err != nil {
		t.Fatalf("failed to decode JSON output: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Summary.BreakEvenYear == nil || *reports[0].Summary.BreakEvenYear != 3 {
		t.Errorf("break-even = %v, expected 3", reports[0].Summary.BreakEvenYear)
	}
	if reports[1].Summary.BreakEvenYear != nil {
		t.Errorf("expected no break-even for short scenario")
	}
	if len(reports[1].Points) != 3 {
		t.Errorf("expected 3 points, got %d", len(reports[1].Points))
	}
	if reports[0].Input.HorizonYears != 5 {
		t.Errorf("input horizon = %d, expected 5", reports[0].Input.HorizonYears)
	}
}
