package rangedoppler

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
)

// groundRangeTolerance is the slant-range match accepted when inverting an
// SRGR polynomial, in metres.
const groundRangeTolerance = 1e-3

// Position is a ground point located in the image.
type Position struct {
	Time         float64 // zero-Doppler time, model seconds
	AzimuthIndex float64
	RangeIndex   float64
	SlantRange   float64
	Sensor       r3.Vec
	Status       Status
}

// Valid reports whether the position may be used.
func (p Position) Valid() bool { return p.Status == Valid }

// SlantRange returns the distance from the sensor at time t to earthPoint,
// and the sensor position.
func (g *Geometry) SlantRange(t float64, earthPoint r3.Vec) (float64, r3.Vec) {
	pos := g.orbit.Position(t)
	return geometry.Distance(pos, earthPoint), pos
}

// RangeIndex returns the fractional range pixel of slantRange at time t,
// before any near-range mirroring. It returns -1 when t is outside the
// acquisition span or the slant range falls outside an SRGR polynomial.
func (g *Geometry) RangeIndex(t, slantRange float64) float64 {
	p := &g.params
	if !p.inTimeSpan(t) {
		return -1
	}
	if !p.IsSRGR() {
		return (slantRange - p.NearEdgeSlantRange) / p.RangeSpacing
	}

	coeffs, origin := p.srgrAt(t)
	gr, ok := groundRange(coeffs, origin, float64(p.Width)*p.RangeSpacing, slantRange)
	if !ok {
		return -1
	}
	return (gr - origin) / p.RangeSpacing
}

// srgrAt returns the SRGR polynomial to use at time t: the set nearest in
// time, or a linear blend of the sets around t when SRGRInterpolate is set.
func (p Params) srgrAt(t float64) ([]float64, float64) {
	sets := p.SRGR
	if len(sets) == 1 {
		return sets[0].Coefficients, sets[0].GroundRangeOrigin
	}

	// idx is the last set whose time is <= t.
	idx := 0
	for i := range sets {
		if t < sets[i].Time {
			break
		}
		idx = i
	}

	if !p.SRGRInterpolate {
		if idx+1 < len(sets) && sets[idx+1].Time-t < t-sets[idx].Time {
			idx++
		}
		return sets[idx].Coefficients, sets[idx].GroundRangeOrigin
	}

	if idx == len(sets)-1 {
		idx--
	}
	lo, hi := sets[idx], sets[idx+1]
	mu := 0.0
	if hi.Time != lo.Time {
		mu = (t - lo.Time) / (hi.Time - lo.Time)
	}
	mu = math.Max(0, math.Min(1, mu))
	n := max(len(lo.Coefficients), len(hi.Coefficients))
	coeffs := make([]float64, n)
	for i := range coeffs {
		var c0, c1 float64
		if i < len(lo.Coefficients) {
			c0 = lo.Coefficients[i]
		}
		if i < len(hi.Coefficients) {
			c1 = hi.Coefficients[i]
		}
		coeffs[i] = c0 + mu*(c1-c0)
	}
	return coeffs, lo.GroundRangeOrigin
}

// groundRange inverts slant = poly(ground) by bisection over
// [origin, origin+span]. The polynomial must increase over that interval.
func groundRange(coeffs []float64, origin, span, slantRange float64) (float64, bool) {
	lo, hi := origin, origin+span
	if slantRange < geometry.PolyVal(coeffs, lo) || slantRange > geometry.PolyVal(coeffs, hi) {
		return 0, false
	}
	for hi-lo > 1e-9 {
		mid := 0.5 * (lo + hi)
		sr := geometry.PolyVal(coeffs, mid)
		switch {
		case math.Abs(sr-slantRange) < groundRangeTolerance:
			return mid, true
		case sr < slantRange:
			lo = mid
		default:
			hi = mid
		}
	}
	return 0.5 * (lo + hi), true
}

// Locate maps an ECEF ground point to image coordinates. With light-time
// correction the azimuth index and slant range are evaluated at t + R/c.
// Raw range indices that are not positive are OutOfRange; otherwise the
// index is mirrored when near range is on the right.
func (g *Geometry) Locate(earthPoint r3.Vec) Position {
	t, status := g.ZeroDopplerTime(earthPoint)
	if status != Valid {
		return Position{Time: t, Status: status}
	}

	p := &g.params
	r, sensor := g.SlantRange(t, earthPoint)
	if g.opts.LightTimeCorrection {
		t += r / geometry.LightSpeed
		r, sensor = g.SlantRange(t, earthPoint)
	}

	pos := Position{
		Time:         t,
		AzimuthIndex: (t - p.FirstLineTime) / p.LineTimeInterval,
		SlantRange:   r,
		Sensor:       sensor,
	}
	ri := g.RangeIndex(t, r)
	if ri <= 0 {
		pos.RangeIndex = ri
		pos.Status = OutOfRange
		return pos
	}
	if !p.NearRangeOnLeft {
		ri = float64(p.Width) - 1 - ri
	}
	pos.RangeIndex = ri
	pos.Status = Valid
	return pos
}

// LocateGeo is Locate for a geodetic point in degrees and metres.
func (g *Geometry) LocateGeo(lat, lon, height float64) Position {
	return g.Locate(geometry.GeoToECEF(lat, lon, height))
}
