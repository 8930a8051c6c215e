package validation

import "fmt"

// Efficiency bounds outside which a derating factor is almost certainly a
// unit mistake (e.g. 80 instead of 0.8).
const (
	minPlausibleEfficiency = 0.5
	maxPlausibleEfficiency = 1.0
)

// ValidateEfficiency warns about implausible system efficiency factors.
func ValidateEfficiency(efficiency float64) string {
	if efficiency < minPlausibleEfficiency || efficiency > maxPlausibleEfficiency {
		return fmt.Sprintf("System efficiency %.2f is outside the usual %.2f-%.2f range",
			efficiency, minPlausibleEfficiency, maxPlausibleEfficiency)
	}
	return ""
}

// ValidateTargetYear checks that the headline year lies inside the computed horizon.
func ValidateTargetYear(scenario string, targetYear, horizonYears int) error {
	if targetYear < 0 {
		return fmt.Errorf("scenario '%s': target year %d must not be negative", scenario, targetYear)
	}
	if targetYear > horizonYears {
		return fmt.Errorf("scenario '%s': target year %d is beyond the %d year horizon",
			scenario, targetYear, horizonYears)
	}
	return nil
}

// ValidateTariffs warns about tariff combinations that are legal but
// probably not what the user meant.
func ValidateTariffs(scenario string, buyPrice, sellPrice, selfConsumptionPct float64) []string {
	var warnings []string

	if sellPrice > buyPrice {
		warnings = append(warnings, fmt.Sprintf("Scenario '%s' sells energy above the purchase price (%.2f > %.2f)",
			scenario, sellPrice, buyPrice))
	}
	if selfConsumptionPct == 100 && sellPrice != buyPrice {
		warnings = append(warnings, fmt.Sprintf("Scenario '%s' consumes all production on site; the sell price has no effect",
			scenario))
	}

	return warnings
}

// ConfigValidator collects soft warnings for a whole configuration.
type ConfigValidator struct {
	Efficiency float64
	Scenarios  []ScenarioConfig
}

// ScenarioConfig is the subset of a scenario that validation inspects.
type ScenarioConfig struct {
	Name               string
	Active             bool
	BuyPrice           float64
	SellPrice          float64
	SelfConsumptionPct float64
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	if warning := ValidateEfficiency(cv.Efficiency); warning != "" {
		warnings = append(warnings, warning)
	}

	active := 0
	for _, scenario := range cv.Scenarios {
		if !scenario.Active {
			continue
		}
		active++
		warnings = append(warnings, ValidateTariffs(scenario.Name, scenario.BuyPrice, scenario.SellPrice, scenario.SelfConsumptionPct)...)
	}

	if len(cv.Scenarios) > 0 && active == 0 {
		warnings = append(warnings, "No active scenarios; nothing will be projected")
	}

	return warnings
}
