package rangedoppler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/orbit"
)

// Test scene: a circular polar orbit over longitude 0 heading north, looking
// east, imaged for ten seconds starting twenty seconds after the epoch.
const (
	testRadius  = geometry.SemiMajorAxis + 700e3
	testGM      = 3.986004418e14
	testFirst   = 20.0
	testLTI     = 0.01
	testHeight  = 1000
	testWidth   = 1000
	testR0      = 850e3
	testSpacing = 10.0
)

var testEpoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testOmega() float64 {
	return math.Sqrt(testGM / (testRadius * testRadius * testRadius))
}

func circularState(t float64) (pos, vel r3.Vec) {
	w := testOmega()
	s, c := math.Sincos(w * t)
	return r3.Vec{X: testRadius * c, Z: testRadius * s}, r3.Vec{X: -testRadius * w * s, Z: testRadius * w * c}
}

func testOrbit(t *testing.T) *orbit.Model {
	t.Helper()
	vs := make([]orbit.StateVector, 7)
	for i := range vs {
		tt := float64(i) * 10
		p, v := circularState(tt)
		vs[i] = orbit.StateVector{Time: testEpoch.Add(time.Duration(i) * 10 * time.Second), Position: p, Velocity: v}
	}
	m, err := orbit.NewModel(vs, orbit.DefaultDegree)
	require.NoError(t, err)
	return m
}

func testParams() Params {
	return Params{
		Wavelength:         0.0555,
		RangeSpacing:       testSpacing,
		AzimuthSpacing:     7.0,
		FirstLineTime:      testFirst,
		LastLineTime:       testFirst + (testHeight-1)*testLTI,
		LineTimeInterval:   testLTI,
		NearEdgeSlantRange: testR0,
		NearRangeOnLeft:    true,
		Width:              testWidth,
		Height:             testHeight,
	}
}

func newTestGeometry(t *testing.T, opts SolverOptions, mutate func(*Params)) *Geometry {
	t.Helper()
	p := testParams()
	if mutate != nil {
		mutate(&p)
	}
	g, err := NewGeometry(testOrbit(t), p, opts)
	require.NoError(t, err)
	return g
}

// pointAt returns the ellipsoid point in the zero-Doppler plane of time t,
// rotated east of the sub-satellite direction by angle (degrees).
func pointAt(t, angle float64) r3.Vec {
	sensor, _ := circularState(t)
	up := r3.Unit(sensor)
	s, c := math.Sincos(angle * math.Pi / 180)
	u := r3.Add(r3.Scale(c, up), r3.Scale(s, r3.Vec{Y: 1}))
	a2 := geometry.SemiMajorAxis * geometry.SemiMajorAxis
	b2 := geometry.SemiMinorAxis * geometry.SemiMinorAxis
	k := 1 / math.Sqrt((u.X*u.X+u.Y*u.Y)/a2+u.Z*u.Z/b2)
	return r3.Scale(k, u)
}
