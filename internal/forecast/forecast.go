// Package forecast defines the data structures related to a given forecast and
// includes functions for computing the forecasts.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"go.uber.org/zap"
)

// Forecast holds all information related to a specific scenario projection.
type Forecast struct {
	Name        string
	Currency    string
	Irradiation irradiance.Reading
	CapacityKWp float64
	Production  float64 // first-year kWh
	Result      *projection.Result
	Summary     projection.Summary
}

// NewProvider returns the irradiation source the configuration asks for.
func NewProvider(logger *zap.Logger, conf config.Configuration) irradiance.Provider {
	if conf.Irradiance.Fixed != nil {
		return irradiance.Static{KWhPerM2: *conf.Irradiance.Fixed}
	}
	return irradiance.NewOpenMeteo(OpenMeteoOptions(logger, conf.Irradiance))
}

// OpenMeteoOptions maps the irradiance section onto client options.
func OpenMeteoOptions(logger *zap.Logger, ic config.IrradianceConfig) irradiance.OpenMeteoOptions {
	timeout := ic.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultIrradianceTimeout
	}
	return irradiance.OpenMeteoOptions{
		BaseURL:  ic.BaseURL,
		Years:    ic.Years,
		Timezone: ic.Timezone,
		Timeout:  time.Duration(timeout) * time.Second,
		Logger:   logger,
	}
}

// GetForecast looks up irradiation once for the configured location and
// projects every active scenario against it. An unavailable irradiation
// aborts the run; no scenario is projected from a substitute value.
func GetForecast(ctx context.Context, logger *zap.Logger, conf config.Configuration, provider irradiance.Provider) ([]Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reading, err := provider.AnnualIrradiation(ctx, conf.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain irradiation for %s: %w", conf.Location, err)
	}

	system := conf.System.WithDefaults()
	production, err := system.AnnualProduction(reading.KWhPerM2)
	if err != nil {
		return nil, err
	}

	logger.Debug("estimated annual production",
		zap.String("op", "forecast.GetForecast"),
		zap.Float64("irradiation", reading.KWhPerM2),
		zap.Float64("capacityKWp", system.CapacityKWp()),
		zap.Float64("production", production),
	)

	var results []Forecast
	for _, scenario := range conf.Scenarios {
		if !scenario.Active {
			logger.Debug(fmt.Sprintf("skipping scenario %s because it is inactive", scenario.Name),
				zap.String("op", "forecast.GetForecast"),
			)
			continue
		}

		finance := conf.ResolveScenario(scenario)
		result, err := projection.Project(finance.ProjectionInput(production, system))
		if err != nil {
			return results, fmt.Errorf("scenario '%s': %w", scenario.Name, err)
		}

		summary, err := result.Summary(finance.TargetYear)
		if err != nil {
			return results, fmt.Errorf("scenario '%s': %w", scenario.Name, err)
		}

		results = append(results, Forecast{
			Name:        scenario.Name,
			Currency:    finance.Currency,
			Irradiation: reading,
			CapacityKWp: system.CapacityKWp(),
			Production:  production,
			Result:      result,
			Summary:     summary,
		})
	}

	return results, nil
}
