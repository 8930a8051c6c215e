// Package projection computes the multi-year cash flow of a photovoltaic
// installation from its annual energy yield and the tariff parameters.
//
// The computation is a pure function: the same Input always produces an
// equal Result and nothing is cached between calls.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/mathutil"
)

var (
	// ErrInvalidInput marks an Input that violates the projector's domain.
	ErrInvalidInput = errors.New("invalid projection input")

	// ErrQueryOutOfRange marks a year query outside the computed horizon.
	ErrQueryOutOfRange = errors.New("year outside projection horizon")
)

// DefaultDegradationPct is the yearly output loss used by configurations
// that do not set one. NewInput leaves degradation at zero.
const DefaultDegradationPct = constants.DefaultDegradationPct

// Input holds the parameters for one projection run.
type Input struct {
	AnnualProduction   float64 `json:"annualProduction"`   // kWh in the first year
	InstallCost        float64 `json:"installCost"`        // upfront cost, paid at year 0
	BuyPrice           float64 `json:"buyPrice"`           // per kWh avoided from the grid
	SellPrice          float64 `json:"sellPrice"`          // per kWh exported
	InflationPct       float64 `json:"inflationPct"`       // yearly tariff escalation
	SelfConsumptionPct float64 `json:"selfConsumptionPct"` // 0-100
	HorizonYears       int     `json:"horizonYears"`
	DegradationPct     float64 `json:"degradationPct"` // yearly output loss
	FixedAnnualCost    float64 `json:"fixedAnnualCost"`
}

// NewInput returns the simple variant: all production offsets purchases at
// the buy price, with no export, no degradation and no running cost.
func NewInput(production, installCost, buyPrice, inflationPct float64, horizonYears int) Input {
	return Input{
		AnnualProduction:   production,
		InstallCost:        installCost,
		BuyPrice:           buyPrice,
		SellPrice:          buyPrice,
		InflationPct:       inflationPct,
		SelfConsumptionPct: constants.DefaultSelfConsumptionPct,
		HorizonYears:       horizonYears,
	}
}

// InputError reports the field that failed validation. It unwraps to
// ErrInvalidInput.
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s (got %g)", ErrInvalidInput, e.Field, e.Reason, e.Value)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Validate rejects inputs outside the projector's domain. Values are never
// clamped; a violation means the caller built the Input incorrectly.
func (in Input) Validate() error {
	nonNegative := []struct {
		field string
		value float64
	}{
		{"annualProduction", in.AnnualProduction},
		{"installCost", in.InstallCost},
		{"buyPrice", in.BuyPrice},
		{"sellPrice", in.SellPrice},
		{"inflationPct", in.InflationPct},
		{"degradationPct", in.DegradationPct},
		{"fixedAnnualCost", in.FixedAnnualCost},
	}
	for _, f := range nonNegative {
		if !mathutil.IsFinite(f.value) {
			return &InputError{Field: f.field, Value: f.value, Reason: "must be finite"}
		}
		if f.value < 0 {
			return &InputError{Field: f.field, Value: f.value, Reason: "must not be negative"}
		}
	}

	if !mathutil.IsFinite(in.SelfConsumptionPct) || in.SelfConsumptionPct < 0 || in.SelfConsumptionPct > 100 {
		return &InputError{Field: "selfConsumptionPct", Value: in.SelfConsumptionPct, Reason: "must be within [0, 100]"}
	}
	if in.HorizonYears < 0 {
		return &InputError{Field: "horizonYears", Value: float64(in.HorizonYears), Reason: "must not be negative"}
	}
	if in.HorizonYears > constants.MaxHorizonYears {
		return &InputError{Field: "horizonYears", Value: float64(in.HorizonYears),
			Reason: fmt.Sprintf("must not exceed %d", constants.MaxHorizonYears)}
	}
	return nil
}

// CashFlowPoint is one year of the projection.
type CashFlowPoint struct {
	Year              int     `json:"year"`
	Production        float64 `json:"production"`
	NetCashFlow       float64 `json:"netCashFlow"`
	CumulativeBalance float64 `json:"cumulativeBalance"`
}

// Result is the outcome of Project. It is never modified after creation;
// accessors hand out copies.
type Result struct {
	input     Input
	points    []CashFlowPoint
	breakEven int
}

// Project runs the year-by-year cash-flow simulation.
//
// Tariffs escalate after each year's flow is booked, so the price used in
// year y is the initial price compounded y-1 times.
func Project(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	points := make([]CashFlowPoint, 0, in.HorizonYears+1)
	balance := -in.InstallCost
	points = append(points, CashFlowPoint{Year: 0, CumulativeBalance: balance})

	buy := in.BuyPrice
	sell := in.SellPrice
	escalation := mathutil.GrowthFactor(in.InflationPct)

	for y := 1; y <= in.HorizonYears; y++ {
		yield := YearYield(in.AnnualProduction, in.DegradationPct, y)
		used := mathutil.ApplyPercentage(yield, in.SelfConsumptionPct)
		sold := yield - used

		net := used*buy + sold*sell - in.FixedAnnualCost
		balance += net
		points = append(points, CashFlowPoint{
			Year:              y,
			Production:        yield,
			NetCashFlow:       net,
			CumulativeBalance: balance,
		})

		buy *= escalation
		sell *= escalation
	}

	return &Result{
		input:     in,
		points:    points,
		breakEven: findBreakEven(points),
	}, nil
}

// YearYield returns the production in the given year (1-based) after linear
// degradation, floored at zero.
func YearYield(production, degradationPct float64, year int) float64 {
	if year < 1 {
		return 0
	}
	remaining := 1 - degradationPct/constants.PercentageMultiplier*float64(year-1)
	return production * math.Max(0, remaining)
}

func findBreakEven(points []CashFlowPoint) int {
	for _, p := range points {
		if p.CumulativeBalance >= 0 {
			return p.Year
		}
	}
	return -1
}

// Input returns the parameters the result was computed from.
func (r *Result) Input() Input {
	return r.input
}

// Horizon returns the last computed year.
func (r *Result) Horizon() int {
	return r.input.HorizonYears
}

// Len returns the number of points, always Horizon()+1.
func (r *Result) Len() int {
	return len(r.points)
}

// Points returns a copy of the full series, year 0 first.
func (r *Result) Points() []CashFlowPoint {
	out := make([]CashFlowPoint, len(r.points))
	copy(out, r.points)
	return out
}

// Point returns the entry for a single year.
func (r *Result) Point(year int) (CashFlowPoint, error) {
	if year < 0 || year >= len(r.points) {
		return CashFlowPoint{}, fmt.Errorf("%w: year %d, horizon %d", ErrQueryOutOfRange, year, r.Horizon())
	}
	return r.points[year], nil
}

// BalanceAt returns the cumulative balance at the end of the given year.
func (r *Result) BalanceAt(year int) (float64, error) {
	p, err := r.Point(year)
	if err != nil {
		return 0, err
	}
	return p.CumulativeBalance, nil
}

// FinalBalance returns the cumulative balance at the horizon.
func (r *Result) FinalBalance() float64 {
	return r.points[len(r.points)-1].CumulativeBalance
}

// BreakEvenYear returns the first year whose cumulative balance is
// non-negative. The bool is false when the balance never crosses zero.
func (r *Result) BreakEvenYear() (int, bool) {
	if r.breakEven < 0 {
		return 0, false
	}
	return r.breakEven, true
}

// TotalProduction sums the degraded yield over the horizon.
func (r *Result) TotalProduction() float64 {
	var total float64
	for _, p := range r.points {
		total += p.Production
	}
	return total
}
