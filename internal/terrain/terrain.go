// Package terrain samples the DEM over an image tile and computes the
// per-pixel ground geometry used by terrain flattening: the illuminated
// area of a DEM cell as seen along the line of sight.
package terrain

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/geometry"
)

// Tile holds elevation, latitude and longitude for an image rectangle plus
// a one-pixel halo on every side. Rows and columns are offset by one: image
// pixel (x, y) is at [y-Y0+1][x-X0+1].
type Tile struct {
	X0, Y0        int
	Width, Height int
	NoData        float64

	Elevation [][]float64
	Lat       [][]float64
	Lon       [][]float64
}

// LoadTile samples elev and gc at the centres of pixels
// [x0-1, x0+width+1) x [y0-1, y0+height+1). The second result is false when
// every post is no-data, so the caller can skip the tile.
func LoadTile(elev dem.ElevationModel, gc geocoding.Geocoding, x0, y0, width, height int) (*Tile, bool) {
	noData := elev.NoDataValue()
	t := &Tile{
		X0: x0, Y0: y0, Width: width, Height: height, NoData: noData,
		Elevation: make2D(height+2, width+2),
		Lat:       make2D(height+2, width+2),
		Lon:       make2D(height+2, width+2),
	}

	valid := false
	for yy := 0; yy < height+2; yy++ {
		y := y0 - 1 + yy
		for xx := 0; xx < width+2; xx++ {
			x := x0 - 1 + xx
			lat, lon, ok := gc.PixelToGeo(float64(x)+0.5, float64(y)+0.5)
			if !ok {
				t.Elevation[yy][xx] = noData
				continue
			}
			if lon >= 180 {
				lon -= 360
			}
			alt := elev.Elevation(lat, lon)
			t.Elevation[yy][xx] = alt
			t.Lat[yy][xx] = lat
			t.Lon[yy][xx] = lon
			if alt != noData {
				valid = true
			}
		}
	}
	return t, valid
}

func make2D(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}

// index converts image coordinates to tile array indices.
func (t *Tile) index(x, y int) (xx, yy int) {
	return x - t.X0 + 1, y - t.Y0 + 1
}

// Contains reports whether image pixel (x, y) is inside the tile or its halo.
func (t *Tile) Contains(x, y int) bool {
	xx, yy := t.index(x, y)
	return xx >= 0 && yy >= 0 && xx < t.Width+2 && yy < t.Height+2
}

// HeightAt returns the elevation at image pixel (x, y), which must be inside
// the tile or its halo.
func (t *Tile) HeightAt(x, y int) float64 {
	xx, yy := t.index(x, y)
	return t.Elevation[yy][xx]
}

// GeoAt returns latitude, longitude and elevation at image pixel (x, y).
func (t *Tile) GeoAt(x, y int) (lat, lon, height float64) {
	xx, yy := t.index(x, y)
	return t.Lat[yy][xx], t.Lon[yy][xx], t.Elevation[yy][xx]
}

// EarthPoint returns the ECEF position of image pixel (x, y) and whether
// its elevation is valid.
func (t *Tile) EarthPoint(x, y int) (r3.Vec, bool) {
	lat, lon, h := t.GeoAt(x, y)
	if h == t.NoData {
		return r3.Vec{}, false
	}
	return geometry.GeoToECEF(lat, lon, h), true
}
