package rangedoppler

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
)

const (
	inverseMaxIterations = 10
	inverseTolerance     = 1e-6 // metres
)

// PixelSlantRange returns the slant range of image column x at time t,
// undoing any near-range mirroring.
func (g *Geometry) PixelSlantRange(x, t float64) float64 {
	p := &g.params
	if !p.NearRangeOnLeft {
		x = float64(p.Width) - 1 - x
	}
	if !p.IsSRGR() {
		return p.NearEdgeSlantRange + x*p.RangeSpacing
	}
	coeffs, origin := p.srgrAt(t)
	return geometry.PolyVal(coeffs, origin+x*p.RangeSpacing)
}

// PixelToEllipsoid returns the ECEF point at the given height above the
// ellipsoid that images at pixel (x, y). It solves the Doppler, range and
// ellipsoid equations together by Newton iteration starting from seed,
// which selects the look side and should be within a few kilometres.
func (g *Geometry) PixelToEllipsoid(x, y, height float64, seed r3.Vec) (r3.Vec, bool) {
	tAz := g.params.AzimuthTime(y)
	r := g.PixelSlantRange(x, tAz)

	t0 := tAz
	if g.opts.LightTimeCorrection {
		t0 -= r / geometry.LightSpeed
	}
	s0, v0 := g.orbit.PositionVelocity(t0)
	sr := g.orbit.Position(tAz)

	a2 := math.Pow(geometry.SemiMajorAxis+height, 2)
	b2 := math.Pow(geometry.SemiMinorAxis+height, 2)

	p := seed
	jac := mat.NewDense(3, 3, nil)
	rhs := mat.NewVecDense(3, nil)
	var delta mat.VecDense
	for iter := 0; iter < inverseMaxIterations; iter++ {
		d0 := r3.Sub(p, s0)
		dr := r3.Sub(p, sr)

		rhs.SetVec(0, -r3.Dot(v0, d0))
		rhs.SetVec(1, -(r3.Norm2(dr) - r*r))
		rhs.SetVec(2, -((p.X*p.X+p.Y*p.Y)/a2 + p.Z*p.Z/b2 - 1))

		jac.SetRow(0, []float64{v0.X, v0.Y, v0.Z})
		jac.SetRow(1, []float64{2 * dr.X, 2 * dr.Y, 2 * dr.Z})
		jac.SetRow(2, []float64{2 * p.X / a2, 2 * p.Y / a2, 2 * p.Z / b2})

		if err := delta.SolveVec(jac, rhs); err != nil {
			return p, false
		}
		step := r3.Vec{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)}
		p = r3.Add(p, step)
		if math.Max(math.Abs(step.X), math.Max(math.Abs(step.Y), math.Abs(step.Z))) < inverseTolerance {
			return p, true
		}
	}
	return p, false
}

// PixelToGeo is PixelToEllipsoid returning latitude and longitude in degrees.
func (g *Geometry) PixelToGeo(x, y, height float64, seed r3.Vec) (lat, lon float64, ok bool) {
	p, ok := g.PixelToEllipsoid(x, y, height, seed)
	if !ok {
		return 0, 0, false
	}
	lat, lon, _ = geometry.ECEFToGeo(p)
	return lat, lon, true
}
