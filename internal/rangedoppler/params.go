// Package rangedoppler maps between ground positions and radar image
// coordinates: the zero-Doppler time of a ground point, its slant range and
// the fractional azimuth and range pixel indices they correspond to.
package rangedoppler

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/sarterrain/internal/orbit"
)

var (
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("rangedoppler: invalid parameters")
	// ErrOrbitCoverage is returned when the orbit does not span the image.
	ErrOrbitCoverage = errors.New("rangedoppler: orbit does not cover acquisition")
)

// SRGRCoefficients is one slant-range-to-ground-range polynomial. Evaluated
// at a ground range in metres it yields the slant range in metres.
type SRGRCoefficients struct {
	Time              float64 // model seconds
	GroundRangeOrigin float64
	Coefficients      []float64
}

// Params are the per-product scalars of the range-Doppler model. Times are
// seconds on the orbit model's clock.
type Params struct {
	Wavelength       float64
	RangeSpacing     float64
	AzimuthSpacing   float64
	FirstLineTime    float64
	LastLineTime     float64
	LineTimeInterval float64

	// NearEdgeSlantRange is used for slant-range products (empty SRGR).
	NearEdgeSlantRange float64
	// SRGR, when non-empty, marks a ground-range product. Entries are
	// sorted by time in Validate.
	SRGR []SRGRCoefficients
	// SRGRInterpolate blends the two SRGR sets around the zero-Doppler time
	// instead of taking the nearest one.
	SRGRInterpolate bool

	NearRangeOnLeft bool
	Width           int
	Height          int
}

// IsSRGR reports whether range indices come from SRGR polynomials.
func (p Params) IsSRGR() bool { return len(p.SRGR) > 0 }

// Validate checks the parameters and sorts the SRGR list.
func (p *Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidParams, p.Width, p.Height)
	case !(p.Wavelength > 0):
		return fmt.Errorf("%w: wavelength %v", ErrInvalidParams, p.Wavelength)
	case !(p.RangeSpacing > 0) || !(p.AzimuthSpacing > 0):
		return fmt.Errorf("%w: pixel spacing %v x %v", ErrInvalidParams, p.RangeSpacing, p.AzimuthSpacing)
	case !(p.LineTimeInterval > 0):
		return fmt.Errorf("%w: line time interval %v", ErrInvalidParams, p.LineTimeInterval)
	case !(p.LastLineTime > p.FirstLineTime):
		return fmt.Errorf("%w: last line time %v not after first %v", ErrInvalidParams, p.LastLineTime, p.FirstLineTime)
	}
	if !p.IsSRGR() && !(p.NearEdgeSlantRange > 0) {
		return fmt.Errorf("%w: near edge slant range %v", ErrInvalidParams, p.NearEdgeSlantRange)
	}
	for i, s := range p.SRGR {
		if len(s.Coefficients) == 0 {
			return fmt.Errorf("%w: SRGR set %d has no coefficients", ErrInvalidParams, i)
		}
	}
	sort.SliceStable(p.SRGR, func(i, j int) bool { return p.SRGR[i].Time < p.SRGR[j].Time })
	return nil
}

// AzimuthTime returns the zero-Doppler time of image line y.
func (p Params) AzimuthTime(y float64) float64 {
	return p.FirstLineTime + y*p.LineTimeInterval
}

// Geometry combines an orbit model and product parameters. It is immutable
// and safe for concurrent use.
type Geometry struct {
	orbit  *orbit.Model
	params Params
	opts   SolverOptions
}

// NewGeometry validates p against m and returns a Geometry. Zero-valued
// options are replaced by their defaults.
func NewGeometry(m *orbit.Model, p Params, opts SolverOptions) (*Geometry, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil orbit", ErrInvalidParams)
	}
	p.SRGR = append([]SRGRCoefficients(nil), p.SRGR...)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !m.Covers(p.FirstLineTime, p.LastLineTime, 0) {
		lo, hi := m.Domain()
		return nil, fmt.Errorf("%w: image [%.3f, %.3f] s, orbit [%.3f, %.3f] s",
			ErrOrbitCoverage, p.FirstLineTime, p.LastLineTime, lo, hi)
	}
	return &Geometry{orbit: m, params: p, opts: opts.withDefaults()}, nil
}

// Params returns a copy of the product parameters.
func (g *Geometry) Params() Params { return g.params }

// Orbit returns the orbit model.
func (g *Geometry) Orbit() *orbit.Model { return g.orbit }

// Options returns the solver options in effect.
func (g *Geometry) Options() SolverOptions { return g.opts }

// Beta0 is the area of one image pixel, azimuth spacing times range spacing.
func (g *Geometry) Beta0() float64 {
	return g.params.AzimuthSpacing * g.params.RangeSpacing
}

// inTimeSpan reports whether t lies inside the closed acquisition span.
func (p Params) inTimeSpan(t float64) bool {
	return t >= math.Min(p.FirstLineTime, p.LastLineTime) && t <= math.Max(p.FirstLineTime, p.LastLineTime)
}
