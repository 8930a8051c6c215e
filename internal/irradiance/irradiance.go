// Package irradiance supplies annual solar irradiation for a location.
//
// Providers report either a finite non-negative value or an error that
// matches ErrUnavailable. A failed lookup is never reported as zero
// irradiation.
package irradiance

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/solar-forecast/pkg/mathutil"
)

var (
	// ErrUnavailable marks irradiation that could not be obtained.
	ErrUnavailable = errors.New("irradiance unavailable")

	// ErrInvalidLocation marks coordinates outside the valid range.
	ErrInvalidLocation = errors.New("invalid location")
)

// Location is a point on the globe in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if !mathutil.IsFinite(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %g outside [-90, 90]", ErrInvalidLocation, l.Latitude)
	}
	if !mathutil.IsFinite(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %g outside [-180, 180]", ErrInvalidLocation, l.Longitude)
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// Reading is a successful irradiation lookup.
type Reading struct {
	Location Location `json:"location"`
	KWhPerM2 float64  `json:"kWhPerM2"` // mean annual irradiation
	Years    []int    `json:"years,omitempty"`
	Days     int      `json:"days"` // daily samples behind the value
	Source   string   `json:"source"`
}

// Provider looks up annual irradiation.
type Provider interface {
	AnnualIrradiation(ctx context.Context, loc Location) (Reading, error)
}

// UnavailableError explains why irradiation could not be obtained. It
// matches ErrUnavailable under errors.Is and unwraps to the cause.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrUnavailable, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrUnavailable, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(reason string, err error) error {
	return &UnavailableError{Reason: reason, Err: err}
}

// Static reports a fixed irradiation for every location. It is used when the
// configuration pins the value instead of querying the archive.
type Static struct {
	KWhPerM2 float64
}

// AnnualIrradiation returns the fixed value.
func (s Static) AnnualIrradiation(ctx context.Context, loc Location) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, unavailable("lookup cancelled", err)
	}
	if !mathutil.IsFinite(s.KWhPerM2) || s.KWhPerM2 < 0 {
		return Reading{}, unavailable(fmt.Sprintf("fixed irradiation %g is not a non-negative number", s.KWhPerM2), nil)
	}
	return Reading{Location: loc, KWhPerM2: s.KWhPerM2, Source: "static"}, nil
}
