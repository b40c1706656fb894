package terrain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geometry"
)

// Corner indexes the DEM posts of a LocalGeometry. The first digit steps
// in range (x), the second steps one line back in azimuth (y-1).
type Corner int

const (
	C00 Corner = iota // (x, y)
	C01               // (x, y-1)
	C10               // (x+1, y)
	C11               // (x+1, y-1)
)

// GeoPoint is a geodetic position in degrees and metres.
type GeoPoint struct {
	Lat, Lon, Height float64
}

// LocalGeometry is the DEM cell anchored at one pixel together with the
// sensor position and the pixel's earth point, which orients the
// projection plane.
type LocalGeometry struct {
	Corners [4]GeoPoint
	Centre  r3.Vec
	Sensor  r3.Vec
	NoData  float64
}

// LocalGeometry gathers the 2x2 stencil at image pixel (x, y). The pixel
// must be inside the tile so the stencil stays within the halo.
func (t *Tile) LocalGeometry(x, y int, centre, sensor r3.Vec) LocalGeometry {
	lg := LocalGeometry{Centre: centre, Sensor: sensor, NoData: t.NoData}
	offsets := [4][2]int{C00: {0, 0}, C01: {0, -1}, C10: {1, 0}, C11: {1, -1}}
	for c, o := range offsets {
		lat, lon, h := t.GeoAt(x+o[0], y+o[1])
		lg.Corners[c] = GeoPoint{Lat: lat, Lon: lon, Height: h}
	}
	return lg
}

// IlluminatedArea returns the area in square metres of the DEM cell
// projected onto the plane perpendicular to the line of sight, split into
// triangles p00-p01-p10 and p11-p01-p10. It returns false when any corner
// has no elevation.
func IlluminatedArea(lg LocalGeometry) (float64, bool) {
	var p [4]r3.Vec
	s := r3.Unit(r3.Sub(lg.Sensor, lg.Centre))
	for i, c := range lg.Corners {
		if c.Height == lg.NoData || math.IsNaN(c.Height) {
			return 0, false
		}
		t := geometry.GeoToECEF(c.Lat, c.Lon, c.Height)
		p[i] = r3.Sub(t, r3.Scale(r3.Dot(t, s), s))
	}
	area := geometry.TriangleArea(p[C00], p[C01], p[C10]) +
		geometry.TriangleArea(p[C11], p[C01], p[C10])
	return area, true
}
