package geocoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearGrid builds a geocoding where lat falls by dLat per line and lon
// rises by dLon per pixel, plus a small shear so the mapping is not
// separable.
func linearGrid(t *testing.T, lon0, dLon float64) *TiePointGrid {
	t.Helper()
	const (
		w, h       = 200, 100
		cols, rows = 5, 3
		subX, subY = 50.0, 50.0
	)
	lat := make([]float64, cols*rows)
	lon := make([]float64, cols*rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x := 0.5 + float64(j)*subX
			y := 0.5 + float64(i)*subY
			lat[i*cols+j] = 10 - 0.001*y + 0.0001*x
			lon[i*cols+j] = NormalizeLon(lon0 + dLon*x + 0.0002*y)
		}
	}
	g, err := NewTiePointGrid(w, h, cols, rows, subX, subY, lat, lon)
	require.NoError(t, err)
	return g
}

func TestNewTiePointGrid_Errors(t *testing.T) {
	t.Parallel()

	four := []float64{0, 0, 0, 0}
	_, err := NewTiePointGrid(0, 10, 2, 2, 1, 1, four, four)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = NewTiePointGrid(10, 10, 1, 4, 1, 1, four, four)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = NewTiePointGrid(10, 10, 2, 2, 0, 1, four, four)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = NewTiePointGrid(10, 10, 2, 2, 1, 1, four, four[:3])
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestTiePointGrid_PixelToGeo(t *testing.T) {
	t.Parallel()
	g := linearGrid(t, 20, 0.002)
	assert.False(t, g.CrossesAntimeridian())

	for _, p := range [][2]float64{{0.5, 0.5}, {13.7, 88.1}, {199.5, 99.5}, {-0.5, -0.5}, {200.5, 50}} {
		lat, lon, ok := g.PixelToGeo(p[0], p[1])
		require.True(t, ok, "%v", p)
		assert.InDelta(t, 10-0.001*p[1]+0.0001*p[0], lat, 1e-9, "%v", p)
		assert.InDelta(t, 20+0.002*p[0]+0.0002*p[1], lon, 1e-9, "%v", p)
	}

	_, _, ok := g.PixelToGeo(-5, 10)
	assert.False(t, ok)
}

func TestTiePointGrid_RoundTrip(t *testing.T) {
	t.Parallel()
	for name, g := range map[string]*TiePointGrid{
		"plain":        linearGrid(t, 20, 0.002),
		"antimeridian": linearGrid(t, 179.8, 0.002),
	} {
		t.Run(name, func(t *testing.T) {
			for _, p := range [][2]float64{{0.5, 0.5}, {57.25, 12.5}, {150.1, 77.7}, {199.9, 99.9}} {
				lat, lon, ok := g.PixelToGeo(p[0], p[1])
				require.True(t, ok)
				assert.True(t, lon >= -180 && lon < 180)

				x, y, ok := g.GeoToPixel(lat, lon)
				require.True(t, ok, "%v", p)
				assert.InDelta(t, p[0], x, 1e-4)
				assert.InDelta(t, p[1], y, 1e-4)
			}
		})
	}
}

func TestTiePointGrid_Antimeridian(t *testing.T) {
	t.Parallel()
	g := linearGrid(t, 179.8, 0.002)
	require.True(t, g.CrossesAntimeridian())

	_, west, ok := g.PixelToGeo(10.5, 0.5)
	require.True(t, ok)
	_, east, ok := g.PixelToGeo(190.5, 0.5)
	require.True(t, ok)
	assert.Greater(t, west, 179.0)
	assert.Less(t, east, -179.0)
}

func TestGeoToPixel_FarOutside(t *testing.T) {
	t.Parallel()
	g := linearGrid(t, 20, 0.002)

	_, _, ok := g.GeoToPixel(40, 60)
	assert.False(t, ok)
}

func TestNormalizeLon(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]float64{
		0: 0, 179.5: 179.5, 180: -180, 181: -179, -181: 179, 540: -180, -720.5: -0.5,
	} {
		assert.InDelta(t, want, NormalizeLon(in), 1e-12, "%v", in)
	}
	assert.False(t, math.IsNaN(NormalizeLon(1e6)))
}
