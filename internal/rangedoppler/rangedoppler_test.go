package rangedoppler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/orbit"
)

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero width", func(p *Params) { p.Width = 0 }},
		{"zero wavelength", func(p *Params) { p.Wavelength = 0 }},
		{"NaN spacing", func(p *Params) { p.RangeSpacing = math.NaN() }},
		{"zero line interval", func(p *Params) { p.LineTimeInterval = 0 }},
		{"reversed times", func(p *Params) { p.LastLineTime = p.FirstLineTime - 1 }},
		{"no near range", func(p *Params) { p.NearEdgeSlantRange = 0 }},
		{"empty SRGR set", func(p *Params) { p.SRGR = []SRGRCoefficients{{Time: 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}

	p := testParams()
	assert.NoError(t, p.Validate())
}

func TestGeometry_ParamsAccessors(t *testing.T) {
	t.Parallel()

	g := newTestGeometry(t, DefaultSolverOptions(), nil)
	// Read-only methods work on the copy Params returns.
	assert.False(t, g.Params().IsSRGR())
	assert.InDelta(t, testFirst+2*testLTI, g.Params().AzimuthTime(2), 1e-12)
	assert.True(t, g.Params().inTimeSpan(testFirst))
	assert.False(t, g.Params().inTimeSpan(testFirst-1))

	srgr := newTestGeometry(t, DefaultSolverOptions(), func(p *Params) {
		p.SRGR = []SRGRCoefficients{{Time: testFirst, Coefficients: []float64{testR0, 1}}}
	})
	assert.True(t, srgr.Params().IsSRGR())
	coeffs, origin := srgr.Params().srgrAt(testFirst)
	assert.Equal(t, []float64{testR0, 1}, coeffs)
	assert.Zero(t, origin)
}

func TestNewGeometry_OrbitCoverage(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.LastLineTime = 75
	_, err := NewGeometry(testOrbit(t), p, DefaultSolverOptions())
	assert.ErrorIs(t, err, ErrOrbitCoverage)

	_, err = NewGeometry(nil, testParams(), DefaultSolverOptions())
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestZeroDopplerTime_InsideSwath(t *testing.T) {
	t.Parallel()
	g := newTestGeometry(t, DefaultSolverOptions(), nil)

	for _, tt := range []float64{20.5, 22.25, 25, 27.777, 29.5} {
		for _, angle := range []float64{3.9, 4.15, 4.4} {
			p := pointAt(tt, angle)
			got, status := g.ZeroDopplerTime(p)
			require.Equal(t, Valid, status, "t=%v angle=%v", tt, angle)
			assert.InDelta(t, tt, got, 1e-5)

			res, scale := g.dopplerResidual(p, got)
			assert.Less(t, math.Abs(res)/scale, 1e-3)
			assert.InDelta(t, 0, g.DopplerFrequency(p, got), 1e-2)
		}
	}
}

func TestZeroDopplerTime_OutsideAndAtEdges(t *testing.T) {
	t.Parallel()
	g := newTestGeometry(t, DefaultSolverOptions(), nil)
	last := g.Params().LastLineTime

	tests := []struct {
		name string
		t    float64
	}{
		{"well before", 5},
		{"just before first line", testFirst - 0.001},
		{"at first line", testFirst},
		{"at last line", last},
		{"just after last line", last + 0.001},
		{"well after", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status := g.ZeroDopplerTime(pointAt(tt.t, 4.1))
			assert.Equal(t, OutOfSwath, status)
		})
	}
}

func TestZeroDopplerTime_IterationCap(t *testing.T) {
	t.Parallel()
	opts := DefaultSolverOptions()
	opts.Tolerance = 1e-30
	opts.MaxIterations = 1
	g := newTestGeometry(t, opts, nil)

	_, status := g.ZeroDopplerTime(pointAt(24.321, 4.1))
	assert.Equal(t, NoConvergence, status)
	assert.Equal(t, "no_convergence", status.String())
}

func TestRangeIndex_Linear(t *testing.T) {
	t.Parallel()
	g := newTestGeometry(t, DefaultSolverOptions(), nil)

	assert.InDelta(t, 123.4, g.RangeIndex(25, testR0+123.4*testSpacing), 1e-9)
	assert.Equal(t, -1.0, g.RangeIndex(testFirst-1, testR0+100))
	assert.Equal(t, -1.0, g.RangeIndex(40, testR0+100))
}

func TestLocate_LinearAndMirrored(t *testing.T) {
	t.Parallel()
	opts := DefaultSolverOptions()
	opts.LightTimeCorrection = false
	left := newTestGeometry(t, opts, nil)
	right := newTestGeometry(t, opts, func(p *Params) { p.NearRangeOnLeft = false })

	p := pointAt(25, 4.15)
	pl := left.Locate(p)
	require.True(t, pl.Valid())

	wantR, sensor := left.SlantRange(pl.Time, p)
	assert.InDelta(t, wantR, pl.SlantRange, 1e-9)
	assert.InDelta(t, 0, geometry.Distance(sensor, pl.Sensor), 1e-9)
	assert.InDelta(t, (wantR-testR0)/testSpacing, pl.RangeIndex, 1e-9)
	assert.InDelta(t, (25-testFirst)/testLTI, pl.AzimuthIndex, 1e-3)

	pr := right.Locate(p)
	require.True(t, pr.Valid())
	assert.InDelta(t, testWidth-1-pl.RangeIndex, pr.RangeIndex, 1e-9)
	assert.InDelta(t, pl.AzimuthIndex, pr.AzimuthIndex, 1e-12)
}

func TestLocate_LightTimeCorrection(t *testing.T) {
	t.Parallel()
	off := DefaultSolverOptions()
	off.LightTimeCorrection = false
	gOff := newTestGeometry(t, off, nil)
	gOn := newTestGeometry(t, DefaultSolverOptions(), nil)

	p := pointAt(25, 4.15)
	a := gOff.Locate(p)
	b := gOn.Locate(p)
	require.True(t, a.Valid())
	require.True(t, b.Valid())

	shift := a.SlantRange / geometry.LightSpeed / testLTI
	assert.InDelta(t, shift, b.AzimuthIndex-a.AzimuthIndex, 1e-6)
	assert.Greater(t, b.AzimuthIndex, a.AzimuthIndex)
}

func TestLocate_NonPositiveRangeIndexDiscarded(t *testing.T) {
	t.Parallel()
	g := newTestGeometry(t, DefaultSolverOptions(), nil)

	// Closer than the near edge.
	pos := g.Locate(pointAt(25, 3.0))
	assert.Equal(t, OutOfRange, pos.Status)
	assert.LessOrEqual(t, pos.RangeIndex, 0.0)
	assert.False(t, pos.Valid())

	pos = g.Locate(pointAt(45, 4.1))
	assert.Equal(t, OutOfSwath, pos.Status)
}

func TestRangeIndex_SRGR(t *testing.T) {
	t.Parallel()

	// slant = R0 + ground reproduces the linear mapping.
	g := newTestGeometry(t, DefaultSolverOptions(), func(p *Params) {
		p.NearEdgeSlantRange = 0
		p.SRGR = []SRGRCoefficients{{Time: 25, GroundRangeOrigin: 0, Coefficients: []float64{testR0, 1}}}
	})
	assert.InDelta(t, 321.5, g.RangeIndex(25, testR0+321.5*testSpacing), 1e-3)
	assert.Equal(t, -1.0, g.RangeIndex(25, testR0-5))
	assert.Equal(t, -1.0, g.RangeIndex(25, testR0+float64(testWidth+5)*testSpacing))

	p := pointAt(26, 4.15)
	lin := newTestGeometry(t, DefaultSolverOptions(), nil).Locate(p)
	srgr := g.Locate(p)
	require.True(t, srgr.Valid())
	assert.InDelta(t, lin.RangeIndex, srgr.RangeIndex, 1e-3)
}

func TestRangeIndex_SRGRSelection(t *testing.T) {
	t.Parallel()

	sets := []SRGRCoefficients{
		{Time: 28, Coefficients: []float64{testR0 + 1000, 1}},
		{Time: 21, Coefficients: []float64{testR0, 1}},
	}
	nearest := newTestGeometry(t, DefaultSolverOptions(), func(p *Params) {
		p.NearEdgeSlantRange = 0
		p.SRGR = sets
	})
	interp := newTestGeometry(t, DefaultSolverOptions(), func(p *Params) {
		p.NearEdgeSlantRange = 0
		p.SRGR = sets
		p.SRGRInterpolate = true
	})

	r := testR0 + 2000
	// Nearest set to t=22 is the one at 21 (sorted by Validate).
	assert.InDelta(t, 200, nearest.RangeIndex(22, r), 1e-3)
	assert.InDelta(t, 100, nearest.RangeIndex(27, r), 1e-3)
	// Halfway between the sets the offset is 500 m.
	assert.InDelta(t, 150, interp.RangeIndex(24.5, r), 1e-3)
	// Beyond the last set the blend holds the last set.
	assert.InDelta(t, 100, interp.RangeIndex(29, r), 1e-3)
	// Input slice is not reordered.
	assert.Equal(t, 28.0, sets[0].Time)
}

func TestPixelToEllipsoid_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, opts := range []SolverOptions{DefaultSolverOptions(), {LightTimeCorrection: false}} {
		for _, left := range []bool{true, false} {
			g := newTestGeometry(t, opts, func(p *Params) { p.NearRangeOnLeft = left })
			for _, px := range [][2]float64{{10, 10}, {500, 500}, {987.5, 120.25}, {3, 990}} {
				seed := pointAt(g.Params().AzimuthTime(px[1]), 4.15)

				e, ok := g.PixelToEllipsoid(px[0], px[1], 0, seed)
				require.True(t, ok)
				_, _, h := geometry.ECEFToGeo(e)
				assert.InDelta(t, 0, h, 1e-3)

				pos := g.Locate(e)
				require.True(t, pos.Valid(), "pixel %v", px)
				assert.InDelta(t, px[0], pos.RangeIndex, 1e-3, "range for %v", px)
				assert.InDelta(t, px[1], pos.AzimuthIndex, 1e-3, "azimuth for %v", px)
			}
		}
	}
}

func TestPixelToGeo_Height(t *testing.T) {
	t.Parallel()
	g := newTestGeometry(t, DefaultSolverOptions(), nil)
	seed := pointAt(25, 4.15)

	lat0, lon0, ok := g.PixelToGeo(400, 500, 0, seed)
	require.True(t, ok)
	lat1, lon1, ok := g.PixelToGeo(400, 500, 1500, seed)
	require.True(t, ok)

	// At a fixed slant range, raised terrain lies farther from nadir.
	assert.Greater(t, lon1, lon0)
	assert.InDelta(t, lat0, lat1, 0.01)
}

// Straight-line flight over a flat plane: zero-Doppler time, slant range
// and range index all have closed forms.
func TestLocate_StraightLineFlatEarth(t *testing.T) {
	t.Parallel()

	const (
		altitude = 700e3
		speed    = 7000.0
		width    = 100
		height   = 100
		spacing  = 20.0
	)
	x0 := geometry.SemiMajorAxis + altitude
	vs := make([]orbit.StateVector, 6)
	for i := range vs {
		tt := float64(i) * 4
		vs[i] = orbit.StateVector{
			Time:     testEpoch.Add(time.Duration(tt * float64(time.Second))),
			Position: r3.Vec{X: x0, Z: speed * tt},
			Velocity: r3.Vec{Z: speed},
		}
	}
	m, err := orbit.NewModel(vs, 2)
	require.NoError(t, err)

	nearGround := 300e3
	r0 := math.Hypot(altitude, nearGround)
	g, err := NewGeometry(m, Params{
		Wavelength: 0.0555, RangeSpacing: spacing, AzimuthSpacing: speed * 0.05,
		FirstLineTime: 5, LastLineTime: 5 + (height-1)*0.05, LineTimeInterval: 0.05,
		NearEdgeSlantRange: r0, NearRangeOnLeft: true, Width: width, Height: height,
	}, SolverOptions{})
	require.NoError(t, err)

	prev := math.Inf(1)
	for col := width - 1; col >= 0; col-- {
		// Ground points walk from far range back toward the nadir line.
		y := nearGround + float64(col)*spacing*0.9
		z := speed * 7.5
		p := r3.Vec{X: geometry.SemiMajorAxis, Y: y, Z: z}

		pos := g.Locate(p)
		if !pos.Valid() {
			continue
		}
		assert.InDelta(t, 7.5, pos.Time, 1e-6)
		wantR := math.Hypot(altitude, y)
		assert.InDelta(t, wantR, pos.SlantRange, 1e-6)
		assert.InDelta(t, (wantR-r0)/spacing, pos.RangeIndex, 1e-6)
		assert.Less(t, pos.SlantRange, prev)
		prev = pos.SlantRange
	}
	assert.Less(t, prev, math.Inf(1))
}
