// Package constants provides shared constants for the solar-forecast application.
package constants

// Photovoltaic defaults. These are configurable starting points, not physical truths.
const (
	// DefaultEfficiency is the system derating applied to plane-of-array irradiation
	DefaultEfficiency = 0.80

	// DefaultDegradationPct is the yearly panel output loss in percent
	DefaultDegradationPct = 0.5

	// DefaultAreaPerKWp is the roof area in square meters occupied by one kWp of panels
	DefaultAreaPerKWp = 5.2

	// DefaultCostPerKWp is the indicative market cost of one installed kWp
	DefaultCostPerKWp = 4500.0

	// DefaultSelfConsumptionPct is the share of production used on site
	DefaultSelfConsumptionPct = 100.0

	// MJToKWh converts MJ/m² to kWh/m²
	MJToKWh = 0.277
)

// Financial constants
const (
	// DefaultHorizonYears is the length of the computed cash-flow series
	DefaultHorizonYears = 30

	// MaxHorizonYears bounds the length of a projection
	MaxHorizonYears = 1000

	// DefaultTargetYear is the year reported as the headline result
	DefaultTargetYear = 12

	// DefaultCurrency is the label printed next to amounts
	DefaultCurrency = "PLN"

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Irradiance source defaults
const (
	// DefaultIrradianceBaseURL is the Open-Meteo historical archive host
	DefaultIrradianceBaseURL = "https://archive-api.open-meteo.com"

	// DefaultIrradianceYear is the calendar year sampled when none is configured
	DefaultIrradianceYear = 2022

	// DefaultIrradianceTimeout bounds a single archive request, in seconds
	DefaultIrradianceTimeout = 15

	// DefaultTimezone lets the archive resolve the local day boundaries
	DefaultTimezone = "auto"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix scopes environment overrides, e.g. SOLAR_LOCATION_LATITUDE
	EnvPrefix = "SOLAR"

	// ServerEnvPrefix scopes server overrides, e.g. SOLAR_SERVER_ADDRESS
	ServerEnvPrefix = EnvPrefix + "_SERVER"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for YAML configs (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRequestTimeout bounds a single API request, in seconds
	DefaultRequestTimeout = 60
)
