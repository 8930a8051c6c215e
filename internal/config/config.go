// Package config defines the data structures related to configuration and
// includes functions for loading and resolving the project file.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/internal/pvsystem"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/validation"
	"github.com/spf13/viper"
)

// DefaultScenarioName names the implicit scenario of a file without any.
const DefaultScenarioName = "default"

// Configuration holds all configuration for solar-forecast.
type Configuration struct {
	Logging    LoggingConfig       `yaml:"logging,omitempty"`
	Output     OutputConfig        `yaml:"output,omitempty"`
	Location   irradiance.Location `yaml:"location"`
	System     pvsystem.System     `yaml:"system"`
	Irradiance IrradianceConfig    `yaml:"irradiance,omitempty"`
	Common     Finance             `yaml:"common"`
	Scenarios  []Scenario          `yaml:"scenarios,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// IrradianceConfig selects and tunes the irradiation source.
type IrradianceConfig struct {
	BaseURL  string   `yaml:"baseURL,omitempty"`
	Years    []int    `yaml:"years,omitempty"`
	Timezone string   `yaml:"timezone,omitempty"`
	Timeout  int      `yaml:"timeout,omitempty"` // seconds
	Fixed    *float64 `yaml:"fixed,omitempty"`   // kWh/m²/year; skips the archive
}

// Finance holds the tariff and investment parameters of a scenario.
type Finance struct {
	InstallCost        float64  `yaml:"installCost"`
	CostFromSystem     bool     `yaml:"costFromSystem,omitempty"` // use the per-kWp estimate
	BuyPrice           float64  `yaml:"buyPrice"`
	SellPrice          *float64 `yaml:"sellPrice,omitempty"` // unset sells at the buy price
	InflationPct       float64  `yaml:"inflationPct"`
	SelfConsumptionPct float64  `yaml:"selfConsumptionPct"`
	DegradationPct     float64  `yaml:"degradationPct"`
	FixedAnnualCost    float64  `yaml:"fixedAnnualCost"`
	HorizonYears       int      `yaml:"horizonYears"`
	TargetYear         int      `yaml:"targetYear"`
	Currency           string   `yaml:"currency,omitempty"`
}

// Scenario names a variant of the common financial parameters. Unset
// fields inherit from Common.
type Scenario struct {
	Name               string   `yaml:"name"`
	Active             bool     `yaml:"active"`
	InstallCost        *float64 `yaml:"installCost,omitempty"`
	CostFromSystem     *bool    `yaml:"costFromSystem,omitempty"`
	BuyPrice           *float64 `yaml:"buyPrice,omitempty"`
	SellPrice          *float64 `yaml:"sellPrice,omitempty"`
	InflationPct       *float64 `yaml:"inflationPct,omitempty"`
	SelfConsumptionPct *float64 `yaml:"selfConsumptionPct,omitempty"`
	DegradationPct     *float64 `yaml:"degradationPct,omitempty"`
	FixedAnnualCost    *float64 `yaml:"fixedAnnualCost,omitempty"`
	HorizonYears       *int     `yaml:"horizonYears,omitempty"`
	TargetYear         *int     `yaml:"targetYear,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from a reader, e.g.
// an uploaded file.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("system.efficiency", constants.DefaultEfficiency)
	v.SetDefault("system.areaPerKWp", constants.DefaultAreaPerKWp)
	v.SetDefault("system.costPerKWp", constants.DefaultCostPerKWp)
	v.SetDefault("irradiance.baseURL", constants.DefaultIrradianceBaseURL)
	v.SetDefault("irradiance.years", []int{constants.DefaultIrradianceYear})
	v.SetDefault("irradiance.timezone", constants.DefaultTimezone)
	v.SetDefault("irradiance.timeout", constants.DefaultIrradianceTimeout)
	v.SetDefault("common.selfConsumptionPct", constants.DefaultSelfConsumptionPct)
	v.SetDefault("common.degradationPct", constants.DefaultDegradationPct)
	v.SetDefault("common.horizonYears", constants.DefaultHorizonYears)
	v.SetDefault("common.targetYear", constants.DefaultTargetYear)
	v.SetDefault("common.currency", constants.DefaultCurrency)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if len(configuration.Scenarios) == 0 {
		configuration.Scenarios = []Scenario{{Name: DefaultScenarioName, Active: true}}
	}
	return &configuration, nil
}

// ActiveScenarios returns the scenarios that will be projected, in file order.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, scenario := range c.Scenarios {
		if scenario.Active {
			active = append(active, scenario)
		}
	}
	return active
}

// ResolveScenario merges a scenario's overrides onto the common parameters.
func (c *Configuration) ResolveScenario(s Scenario) Finance {
	f := c.Common
	if s.SellPrice == nil && f.SellPrice != nil {
		sell := *f.SellPrice
		f.SellPrice = &sell
	}

	setFloat(&f.InstallCost, s.InstallCost)
	setFloat(&f.BuyPrice, s.BuyPrice)
	setFloat(&f.InflationPct, s.InflationPct)
	setFloat(&f.SelfConsumptionPct, s.SelfConsumptionPct)
	setFloat(&f.DegradationPct, s.DegradationPct)
	setFloat(&f.FixedAnnualCost, s.FixedAnnualCost)
	if s.SellPrice != nil {
		sell := *s.SellPrice
		f.SellPrice = &sell
	}
	if s.CostFromSystem != nil {
		f.CostFromSystem = *s.CostFromSystem
	}
	if s.HorizonYears != nil {
		f.HorizonYears = *s.HorizonYears
	}
	if s.TargetYear != nil {
		f.TargetYear = *s.TargetYear
	}
	return f
}

func setFloat(dst *float64, override *float64) {
	if override != nil {
		*dst = *override
	}
}

// ProjectionInput builds the projector input for a given first-year
// production. The install cost comes from the system estimate when
// CostFromSystem is set.
func (f Finance) ProjectionInput(production float64, system pvsystem.System) projection.Input {
	sell := f.BuyPrice
	if f.SellPrice != nil {
		sell = *f.SellPrice
	}

	cost := f.InstallCost
	if f.CostFromSystem {
		cost = system.EstimatedCost()
	}

	return projection.Input{
		AnnualProduction:   production,
		InstallCost:        cost,
		BuyPrice:           f.BuyPrice,
		SellPrice:          sell,
		InflationPct:       f.InflationPct,
		SelfConsumptionPct: f.SelfConsumptionPct,
		HorizonYears:       f.HorizonYears,
		DegradationPct:     f.DegradationPct,
		FixedAnnualCost:    f.FixedAnnualCost,
	}
}

// EffectiveSellPrice returns the export price, which defaults to the buy price.
func (f Finance) EffectiveSellPrice() float64 {
	if f.SellPrice != nil {
		return *f.SellPrice
	}
	return f.BuyPrice
}

// Validate returns an error for configurations that cannot be projected.
func (c *Configuration) Validate() error {
	var errs []error

	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Irradiance.Fixed == nil {
		if err := c.Location.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	system := c.System.WithDefaults()
	if err := system.Validate(); err != nil {
		errs = append(errs, err)
	}

	for _, scenario := range c.ActiveScenarios() {
		finance := c.ResolveScenario(scenario)
		// Production is unknown here; any valid value exercises the other fields.
		if err := finance.ProjectionInput(0, system).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenario '%s': %w", scenario.Name, err))
		}
		if err := validation.ValidateTargetYear(scenario.Name, finance.TargetYear, finance.HorizonYears); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var scenarios []validation.ScenarioConfig
	for _, scenario := range c.Scenarios {
		finance := c.ResolveScenario(scenario)
		scenarios = append(scenarios, validation.ScenarioConfig{
			Name:               scenario.Name,
			Active:             scenario.Active,
			BuyPrice:           finance.BuyPrice,
			SellPrice:          finance.EffectiveSellPrice(),
			SelfConsumptionPct: finance.SelfConsumptionPct,
		})
	}

	validator := validation.ConfigValidator{
		Efficiency: c.System.Efficiency,
		Scenarios:  scenarios,
	}
	return validator.ValidateAll()
}
