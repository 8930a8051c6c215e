// Package pvsystem sizes a rooftop installation and converts annual
// irradiation into the energy yield consumed by the cash-flow projection.
package pvsystem

import (
	"errors"
	"fmt"

	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/mathutil"
)

// ErrInvalidSystem marks a system description that cannot be sized.
var ErrInvalidSystem = errors.New("invalid system")

// System describes the installation. Capacity wins over RoofArea when both
// are set.
type System struct {
	RoofArea   float64 `json:"roofArea,omitempty" yaml:"roofArea,omitempty"`     // m²
	Capacity   float64 `json:"capacity,omitempty" yaml:"capacity,omitempty"`     // kWp
	Efficiency float64 `json:"efficiency,omitempty" yaml:"efficiency,omitempty"` // derating factor
	AreaPerKWp float64 `json:"areaPerKWp,omitempty" yaml:"areaPerKWp,omitempty"`
	CostPerKWp float64 `json:"costPerKWp,omitempty" yaml:"costPerKWp,omitempty"`
}

// WithDefaults fills unset factors from the package defaults.
func (s System) WithDefaults() System {
	if s.Efficiency == 0 {
		s.Efficiency = constants.DefaultEfficiency
	}
	if s.AreaPerKWp == 0 {
		s.AreaPerKWp = constants.DefaultAreaPerKWp
	}
	if s.CostPerKWp == 0 {
		s.CostPerKWp = constants.DefaultCostPerKWp
	}
	return s
}

// Validate rejects negative or non-finite parameters and a system with no
// size at all.
func (s System) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"roofArea", s.RoofArea},
		{"capacity", s.Capacity},
		{"efficiency", s.Efficiency},
		{"areaPerKWp", s.AreaPerKWp},
		{"costPerKWp", s.CostPerKWp},
	}
	for _, f := range fields {
		if !mathutil.IsFinite(f.value) || f.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %g", ErrInvalidSystem, f.name, f.value)
		}
	}
	if s.Capacity == 0 && s.RoofArea == 0 {
		return fmt.Errorf("%w: either capacity or roofArea is required", ErrInvalidSystem)
	}
	if s.Capacity == 0 && s.AreaPerKWp == 0 {
		return fmt.Errorf("%w: areaPerKWp must be positive to size from roof area", ErrInvalidSystem)
	}
	return nil
}

// CapacityKWp returns the installed peak power.
func (s System) CapacityKWp() float64 {
	if s.Capacity > 0 {
		return s.Capacity
	}
	return CapacityFromRoofArea(s.RoofArea, s.AreaPerKWp)
}

// EstimatedCost returns the indicative market cost of the installation.
func (s System) EstimatedCost() float64 {
	return EstimatedCost(s.CapacityKWp(), s.CostPerKWp)
}

// AnnualProduction returns the yearly energy yield for the given irradiation.
func (s System) AnnualProduction(irradiation float64) (float64, error) {
	return AnnualProduction(irradiation, s.CapacityKWp(), s.Efficiency)
}

// CapacityFromRoofArea converts usable roof area into peak power.
func CapacityFromRoofArea(area, areaPerKWp float64) float64 {
	if areaPerKWp <= 0 {
		return 0
	}
	return area / areaPerKWp
}

// EstimatedCost is capacity times the per-kWp price.
func EstimatedCost(capacityKWp, costPerKWp float64) float64 {
	return capacityKWp * costPerKWp
}

// AnnualProduction converts annual irradiation (kWh/m²) into energy (kWh):
// irradiation * capacity * efficiency.
func AnnualProduction(irradiation, capacityKWp, efficiency float64) (float64, error) {
	inputs := []struct {
		name  string
		value float64
	}{
		{"irradiation", irradiation},
		{"capacity", capacityKWp},
		{"efficiency", efficiency},
	}
	for _, in := range inputs {
		if !mathutil.IsFinite(in.value) || in.value < 0 {
			return 0, fmt.Errorf("%w: %s must be a non-negative number, got %g", ErrInvalidSystem, in.name, in.value)
		}
	}
	return irradiation * capacityKWp * efficiency, nil
}
