package rangedoppler

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Status classifies the outcome of mapping a ground point into the image.
// Anything other than Valid means the point contributes nothing.
type Status int

const (
	Valid Status = iota
	// OutOfSwath: no zero-Doppler time inside the acquisition span.
	OutOfSwath
	// NoConvergence: a bracket was found but the iteration cap was hit.
	NoConvergence
	// OutOfRange: the time is valid but the range index is not positive.
	OutOfRange
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case OutOfSwath:
		return "out_of_swath"
	case NoConvergence:
		return "no_convergence"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// Solver defaults.
const (
	DefaultDopplerTolerance = 1e-8
	DefaultMaxIterations    = 20
	DefaultBracketSamples   = 16

	// minBracketWidth ends the search once the bracket is this narrow (s).
	minBracketWidth = 1e-7
	// edgeTolerance is how close to the span edges a root counts as on
	// the edge (s).
	edgeTolerance = 1e-6
)

// SolverOptions control the zero-Doppler search and the azimuth time
// correction applied by Locate.
type SolverOptions struct {
	// Tolerance on the normalised Doppler residual (P-S)·V / (|P-S||V|).
	Tolerance float64
	// MaxIterations caps the Newton iterations after bracketing.
	MaxIterations int
	// BracketSamples is the number of coarse samples over the image span.
	BracketSamples int
	// LightTimeCorrection shifts the azimuth time by slantRange/c.
	LightTimeCorrection bool
}

// DefaultSolverOptions returns the defaults with light-time correction on.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Tolerance:           DefaultDopplerTolerance,
		MaxIterations:       DefaultMaxIterations,
		BracketSamples:      DefaultBracketSamples,
		LightTimeCorrection: true,
	}
}

func (o SolverOptions) withDefaults() SolverOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultDopplerTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.BracketSamples < 2 {
		o.BracketSamples = DefaultBracketSamples
	}
	return o
}

// dopplerResidual returns (P-S)·V and |P-S||V| at time t.
func (g *Geometry) dopplerResidual(earthPoint r3.Vec, t float64) (res, scale float64) {
	pos, vel := g.orbit.PositionVelocity(t)
	d := r3.Sub(earthPoint, pos)
	return r3.Dot(d, vel), r3.Norm(d) * r3.Norm(vel)
}

// DopplerFrequency returns the Doppler frequency in Hz of earthPoint as seen
// from the sensor at time t.
func (g *Geometry) DopplerFrequency(earthPoint r3.Vec, t float64) float64 {
	pos, vel := g.orbit.PositionVelocity(t)
	d := r3.Sub(earthPoint, pos)
	return 2 * r3.Dot(vel, d) / (r3.Norm(d) * g.params.Wavelength)
}

// ZeroDopplerTime finds the time in the open acquisition span at which the
// sensor velocity is perpendicular to the line of sight to earthPoint.
//
// The span is sampled coarsely to bracket a sign change of the Doppler
// residual, then refined by Newton steps that fall back to bisection when
// they leave the bracket. A root at or beyond the span edges is OutOfSwath.
func (g *Geometry) ZeroDopplerTime(earthPoint r3.Vec) (float64, Status) {
	p := &g.params
	first, last := p.FirstLineTime, p.LastLineTime
	n := g.opts.BracketSamples
	step := (last - first) / float64(n-1)

	a := first
	ga, _ := g.dopplerResidual(earthPoint, a)
	if ga == 0 {
		return a, OutOfSwath
	}

	b, gb := a, ga
	found := false
	for k := 1; k < n; k++ {
		t := first + float64(k)*step
		if k == n-1 {
			t = last
		}
		gt, _ := g.dopplerResidual(earthPoint, t)
		if gt == 0 {
			if k == n-1 {
				return t, OutOfSwath
			}
			return t, Valid
		}
		if math.Signbit(gt) != math.Signbit(ga) {
			b, gb = t, gt
			found = true
			break
		}
		a, ga = t, gt
	}
	if !found {
		return 0, OutOfSwath
	}

	// Secant seed, as the coarse samples are usually close to linear.
	t := a - ga*(b-a)/(gb-ga)
	for iter := 0; iter < g.opts.MaxIterations; iter++ {
		pos, vel, acc := g.orbit.State(t)
		d := r3.Sub(earthPoint, pos)
		res := r3.Dot(d, vel)
		scale := r3.Norm(d) * r3.Norm(vel)
		if scale == 0 {
			return 0, NoConvergence
		}
		if math.Abs(res)/scale < g.opts.Tolerance || b-a < minBracketWidth {
			return g.checkSpan(t)
		}

		if math.Signbit(res) == math.Signbit(ga) {
			a, ga = t, res
		} else {
			b = t
		}

		deriv := -r3.Norm2(vel) + r3.Dot(d, acc)
		next := t - res/deriv
		if deriv == 0 || !(next > a && next < b) {
			next = 0.5 * (a + b)
		}
		t = next
	}
	return 0, NoConvergence
}

func (g *Geometry) checkSpan(t float64) (float64, Status) {
	if t-g.params.FirstLineTime <= edgeTolerance || g.params.LastLineTime-t <= edgeTolerance {
		return t, OutOfSwath
	}
	return t, Valid
}
