package integration

import (
	"context"
	"testing"
	"time"

	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/pkg/testutil"
	"go.uber.org/zap"
)

// TestPerformance checks that long horizons stay cheap.
func TestPerformance(t *testing.T) {
	in := projection.Input{
		AnnualProduction:   4000,
		InstallCost:        25000,
		BuyPrice:           1.10,
		SellPrice:          0.50,
		InflationPct:       3,
		SelfConsumptionPct: 25,
		HorizonYears:       1000,
		DegradationPct:     0.5,
		FixedAnnualCost:    150,
	}

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if _, err := projection.Project(in); err != nil {
			t.Fatalf("Project() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	t.Logf("1000 projections of %d years: %v", in.HorizonYears, elapsed)
	if elapsed > 10*time.Second {
		t.Errorf("projection time %v exceeds 10 second threshold", elapsed)
	}
}

// TestDataConsistency validates that multiple runs produce identical results.
func TestDataConsistency(t *testing.T) {
	stub := newArchiveStub(t)
	conf := loadTestConfiguration(t, stub)

	first := runPipeline(t, conf)
	for run := 0; run < 5; run++ {
		again := runPipeline(t, conf)
		for _, expected := range first {
			actual := testutil.FindScenario(again, expected.Name)
			if actual == nil {
				t.Fatalf("run %d: missing scenario %s", run, expected.Name)
			}
			want, got := testutil.BalanceSeries(&expected), testutil.BalanceSeries(actual)
			if len(want) != len(got) {
				t.Fatalf("run %d: %s has %d points, expected %d", run, expected.Name, len(got), len(want))
			}
			for i := range want {
				if want[i] != got[i] {
					t.Errorf("run %d: %s balance at year %d = %v, expected %v", run, expected.Name, i, got[i], want[i])
				}
			}
		}
	}
}

func BenchmarkGetForecast(b *testing.B) {
	conf, err := config.LoadConfiguration(testConfigPath)
	if err != nil {
		b.Fatalf("LoadConfiguration() error = %v", err)
	}
	provider := irradiance.Static{KWhPerM2: annualKWhPerM2}
	logger := zap.NewNop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := forecast.GetForecast(context.Background(), logger, *conf, provider); err != nil {
			b.Fatalf("GetForecast() error = %v", err)
		}
	}
}
