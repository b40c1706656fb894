// Package geocoding maps image pixel coordinates to latitude and longitude
// and back. Pixel (x, y) covers [x, x+1) x [y, y+1); its centre is at
// (x+0.5, y+0.5).
package geocoding

import (
	"errors"
	"fmt"
	"math"
)

// Geocoding is the image-to-ground mapping of a product.
type Geocoding interface {
	PixelToGeo(x, y float64) (lat, lon float64, ok bool)
	GeoToPixel(lat, lon float64) (x, y float64, ok bool)
	CrossesAntimeridian() bool
}

// ErrInvalidGrid is returned by NewTiePointGrid.
var ErrInvalidGrid = errors.New("geocoding: invalid tie-point grid")

const (
	inverseMaxIterations = 20
	inverseTolerance     = 1e-6 // pixels
)

// TiePointGrid interpolates latitude and longitude bilinearly between tie
// points. Tie point (i, j) sits at pixel coordinate
// (0.5 + j*SubSamplingX, 0.5 + i*SubSamplingY).
type TiePointGrid struct {
	imageWidth, imageHeight int
	cols, rows              int
	subX, subY              float64
	lat, lon                []float64
	crosses                 bool
}

// NewTiePointGrid builds a geocoding for an image of the given size from a
// rows x cols tie-point raster stored row-major.
func NewTiePointGrid(imageWidth, imageHeight, cols, rows int, subX, subY float64, lat, lon []float64) (*TiePointGrid, error) {
	switch {
	case imageWidth <= 0 || imageHeight <= 0:
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidGrid, imageWidth, imageHeight)
	case cols < 2 || rows < 2:
		return nil, fmt.Errorf("%w: need at least 2x2 tie points, got %dx%d", ErrInvalidGrid, cols, rows)
	case !(subX > 0) || !(subY > 0):
		return nil, fmt.Errorf("%w: sub-sampling %v x %v", ErrInvalidGrid, subX, subY)
	case len(lat) != cols*rows || len(lon) != cols*rows:
		return nil, fmt.Errorf("%w: have %d lat and %d lon values, want %d", ErrInvalidGrid, len(lat), len(lon), cols*rows)
	}

	g := &TiePointGrid{
		imageWidth: imageWidth, imageHeight: imageHeight,
		cols: cols, rows: rows,
		subX: subX, subY: subY,
		lat: append([]float64(nil), lat...),
		lon: append([]float64(nil), lon...),
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range g.lon {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo > 180 {
		g.crosses = true
		for i, v := range g.lon {
			if v < 0 {
				g.lon[i] = v + 360
			}
		}
	}
	return g, nil
}

// CrossesAntimeridian implements Geocoding.
func (g *TiePointGrid) CrossesAntimeridian() bool { return g.crosses }

// Size returns the image size the grid was built for.
func (g *TiePointGrid) Size() (width, height int) { return g.imageWidth, g.imageHeight }

// cell returns the tie-point cell and fractional offsets for a pixel
// coordinate. Offsets fall outside [0, 1] beyond the grid, extrapolating
// the edge cells.
func (g *TiePointGrid) cell(x, y float64) (i, j int, u, v float64) {
	fx := (x - 0.5) / g.subX
	fy := (y - 0.5) / g.subY
	j = max(0, min(int(math.Floor(fx)), g.cols-2))
	i = max(0, min(int(math.Floor(fy)), g.rows-2))
	return i, j, fx - float64(j), fy - float64(i)
}

func bilerp(data []float64, cols, i, j int, u, v float64) float64 {
	a := data[i*cols+j]
	b := data[i*cols+j+1]
	c := data[(i+1)*cols+j]
	d := data[(i+1)*cols+j+1]
	return a*(1-u)*(1-v) + b*u*(1-v) + c*(1-u)*v + d*u*v
}

// unwrapped returns lat and continuous lon at a pixel coordinate.
func (g *TiePointGrid) unwrapped(x, y float64) (lat, lon float64) {
	i, j, u, v := g.cell(x, y)
	return bilerp(g.lat, g.cols, i, j, u, v), bilerp(g.lon, g.cols, i, j, u, v)
}

// inside reports whether (x, y) lies within one pixel of the image.
func (g *TiePointGrid) inside(x, y float64) bool {
	return x >= -1 && y >= -1 && x <= float64(g.imageWidth)+1 && y <= float64(g.imageHeight)+1
}

// PixelToGeo implements Geocoding. Longitudes are returned in [-180, 180).
func (g *TiePointGrid) PixelToGeo(x, y float64) (lat, lon float64, ok bool) {
	if !g.inside(x, y) {
		return 0, 0, false
	}
	lat, lon = g.unwrapped(x, y)
	return lat, NormalizeLon(lon), true
}

// GeoToPixel implements Geocoding by Newton iteration on the bilinear
// mapping, seeded at the nearest tie point.
func (g *TiePointGrid) GeoToPixel(lat, lon float64) (x, y float64, ok bool) {
	if g.crosses && lon < 0 {
		lon += 360
	}

	best := math.Inf(1)
	for k := range g.lat {
		d := math.Hypot(g.lat[k]-lat, g.lon[k]-lon)
		if d < best {
			best = d
			x = 0.5 + float64(k%g.cols)*g.subX
			y = 0.5 + float64(k/g.cols)*g.subY
		}
	}

	const h = 0.5
	for iter := 0; iter < inverseMaxIterations; iter++ {
		la, lo := g.unwrapped(x, y)
		fLat, fLon := la-lat, lo-lon

		lax, lox := g.unwrapped(x+h, y)
		lay, loy := g.unwrapped(x, y+h)
		// Jacobian of (lat, lon) with respect to (x, y).
		a, b := (lax-la)/h, (lay-la)/h
		c, d := (lox-lo)/h, (loy-lo)/h
		det := a*d - b*c
		if det == 0 {
			return x, y, false
		}
		dx := (d*fLat - b*fLon) / det
		dy := (a*fLon - c*fLat) / det
		x -= dx
		y -= dy
		if math.Abs(dx) < inverseTolerance && math.Abs(dy) < inverseTolerance {
			return x, y, g.inside(x, y)
		}
	}
	return x, y, false
}

// NormalizeLon wraps a longitude in degrees into [-180, 180).
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
