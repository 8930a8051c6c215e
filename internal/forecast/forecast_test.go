package forecast

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/internal/pvsystem"
	"go.uber.org/zap"
)

type failingProvider struct {
	calls int
}

func (p *failingProvider) AnnualIrradiation(ctx context.Context, loc irradiance.Location) (irradiance.Reading, error) {
	p.calls++
	return irradiance.Reading{}, &irradiance.UnavailableError{Reason: "network down"}
}

func floatPtr(v float64) *float64 { return &v }

func testConfiguration() config.Configuration {
	return config.Configuration{
		Location: irradiance.Location{Latitude: 52, Longitude: 19},
		System:   pvsystem.System{Capacity: 5, Efficiency: 0.8},
		Common: config.Finance{
			InstallCost:        25000,
			BuyPrice:           1.10,
			SellPrice:          floatPtr(0.50),
			InflationPct:       10,
			SelfConsumptionPct: 25,
			DegradationPct:     0.5,
			FixedAnnualCost:    150,
			HorizonYears:       30,
			TargetYear:         12,
			Currency:           "PLN",
		},
		Scenarios: []config.Scenario{
			{Name: "advanced", Active: true},
			{Name: "inactive", Active: false},
			{Name: "simple", Active: true, SellPrice: floatPtr(1.10), SelfConsumptionPct: floatPtr(100),
				DegradationPct: floatPtr(0), FixedAnnualCost: floatPtr(0)},
		},
	}
}

func TestGetForecast(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	// 1000 kWh/m² * 5 kWp * 0.8 = 4000 kWh
	results, err := GetForecast(context.Background(), logger, testConfiguration(), irradiance.Static{KWhPerM2: 1000})
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 active scenarios, got %d", len(results))
	}
	if results[0].Name != "advanced" || results[1].Name != "simple" {
		t.Errorf("unexpected scenario order: %s, %s", results[0].Name, results[1].Name)
	}

	for _, result := range results {
		if math.Abs(result.Production-4000) > 1e-9 {
			t.Errorf("%s production = %v, expected 4000", result.Name, result.Production)
		}
		if result.Result.Len() != 31 {
			t.Errorf("%s has %d points, expected 31", result.Name, result.Result.Len())
		}
		if result.Summary.TargetYear != 12 {
			t.Errorf("%s target year = %d, expected 12", result.Name, result.Summary.TargetYear)
		}
		if result.Currency != "PLN" {
			t.Errorf("%s currency = %q", result.Name, result.Currency)
		}
	}

	first, err := results[0].Result.Point(1)
	if err != nil {
		t.Fatalf("Point(1) error = %v", err)
	}
	if math.Abs(first.NetCashFlow-2450) > 1e-6 {
		t.Errorf("advanced year 1 net = %v, expected 2450", first.NetCashFlow)
	}

	simpleFirst, _ := results[1].Result.Point(1)
	if math.Abs(simpleFirst.NetCashFlow-4400) > 1e-6 {
		t.Errorf("simple year 1 net = %v, expected 4400", simpleFirst.NetCashFlow)
	}
}

func TestGetForecastUnavailableIrradiation(t *testing.T) {
	provider := &failingProvider{}

	results, err := GetForecast(context.Background(), zap.NewNop(), testConfiguration(), provider)
	if err == nil {
		t.Fatal("expected error when irradiation is unavailable")
	}
	if !errors.Is(err, irradiance.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no projections from missing data, got %d", len(results))
	}
	if provider.calls != 1 {
		t.Errorf("expected one lookup shared by all scenarios, got %d", provider.calls)
	}
}

func TestGetForecastZeroIrradiationIsProjected(t *testing.T) {
	results, err := GetForecast(context.Background(), nil, testConfiguration(), irradiance.Static{})
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	for _, result := range results {
		if _, ok := result.Result.BreakEvenYear(); ok {
			t.Errorf("%s should never break even without sunlight", result.Name)
		}
	}
}

func TestGetForecastInvalidScenario(t *testing.T) {
	conf := testConfiguration()
	conf.Scenarios[0].InstallCost = floatPtr(-1)

	_, err := GetForecast(context.Background(), zap.NewNop(), conf, irradiance.Static{KWhPerM2: 1000})
	if !errors.Is(err, projection.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetForecastTargetBeyondHorizon(t *testing.T) {
	conf := testConfiguration()
	conf.Common.TargetYear = 31

	_, err := GetForecast(context.Background(), zap.NewNop(), conf, irradiance.Static{KWhPerM2: 1000})
	if !errors.Is(err, projection.ErrQueryOutOfRange) {
		t.Errorf("expected ErrQueryOutOfRange, got %v", err)
	}
}

func TestGetForecastFromTestConfig(t *testing.T) {
	conf, err := config.LoadConfiguration(filepath.Join("..", "..", "test", "test_config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	results, err := GetForecast(context.Background(), zap.NewNop(), *conf, irradiance.Static{KWhPerM2: 1050})
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// 30 m² / 5.2 m²/kWp * 1050 * 0.82
	expected := 30.0 / 5.2 * 1050 * 0.82
	if math.Abs(results[0].Production-expected) > 1e-6 {
		t.Errorf("production = %v, expected %v", results[0].Production, expected)
	}
	if results[1].Result.Horizon() != 15 || results[1].Summary.TargetYear != 15 {
		t.Errorf("override scenario horizon/target = %d/%d", results[1].Result.Horizon(), results[1].Summary.TargetYear)
	}
}

func TestNewProvider(t *testing.T) {
	conf := testConfiguration()
	if _, ok := NewProvider(zap.NewNop(), conf).(*irradiance.OpenMeteo); !ok {
		t.Error("expected the archive client by default")
	}

	conf.Irradiance.Fixed = floatPtr(900)
	provider, ok := NewProvider(zap.NewNop(), conf).(irradiance.Static)
	if !ok {
		t.Fatal("expected a static provider for a fixed irradiation")
	}
	if provider.KWhPerM2 != 900 {
		t.Errorf("static irradiation = %v, expected 900", provider.KWhPerM2)
	}
}
