package georef

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/terrain"
)

// cancelCheckRows is how many rows are traversed between checks of the
// context.
const cancelCheckRows = 16

// traversePixels visits the DEM post under every pixel of the read window.
func (c *Context) traversePixels(ctx context.Context, tile, win raster.Rect, lat, lon *Grid, stats *monitoring.TileStats) error {
	dt, valid := terrain.LoadTile(c.elev, c.gc, win.X, win.Y, win.Width, win.Height)
	if !valid {
		stats.NoDataDEM = win.Width * win.Height
		return nil
	}
	for y := win.Y; y < win.MaxY(); y++ {
		if (y-win.Y)%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for x := win.X; x < win.MaxX(); x++ {
			stats.Processed++
			la, lo, alt := dt.GeoAt(x, y)
			if alt == dt.NoData {
				stats.NoDataDEM++
				continue
			}
			if c.cfg.OrbitRefinement {
				var ok bool
				if la, lo, alt, ok = c.refine(x, y, la, lo, alt); !ok {
					stats.NotValid++
					continue
				}
			}
			c.place(la, lo, alt, tile, lat, lon, stats)
		}
	}
	return nil
}

// traverseLattice visits a regular lat/lon lattice covering the read
// window.
func (c *Context) traverseLattice(ctx context.Context, tile, win raster.Rect, lat, lon *Grid, stats *monitoring.TileStats) error {
	latMin, latMax, lonMin, lonMax, ok := c.geoBounds(tile.X, tile.MaxX(), win.Y, win.MaxY())
	if !ok {
		return nil
	}
	nLat := int((latMax-latMin)/c.delLat) + 1
	nLon := int((lonMax-lonMin)/c.delLon) + 1
	noData := c.elev.NoDataValue()

	for i := 0; i < nLat; i++ {
		if i%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		la := latMin + float64(i)*c.delLat
		for j := 0; j < nLon; j++ {
			stats.Processed++
			lo := lonMin + float64(j)*c.delLon
			if lo >= 180 {
				lo -= 360
			}
			alt := c.elev.Elevation(la, lo)
			if alt == noData {
				stats.NoDataDEM++
				continue
			}
			c.place(la, lo, alt, tile, lat, lon, stats)
		}
	}
	return nil
}

// geoBounds returns the latitude and longitude range of the four corners
// x0/x1 by y0/y1, in geocoding pixel coordinates.
func (c *Context) geoBounds(x0, x1, y0, y1 int) (latMin, latMax, lonMin, lonMax float64, ok bool) {
	latMin, latMax = 90, -90
	lonMin, lonMax = 180, -180
	for _, p := range [4][2]int{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		la, lo, valid := c.gc.PixelToGeo(float64(p[0]), float64(p[1]))
		if !valid {
			return 0, 0, 0, 0, false
		}
		latMin, latMax = math.Min(latMin, la), math.Max(latMax, la)
		lonMin, lonMax = math.Min(lonMin, lo), math.Max(lonMax, lo)
	}
	return latMin, latMax, lonMin, lonMax, true
}

// computeLatticeStep sets the re-grid step from the smaller of the ground
// range and azimuth pixel spacings, at the latitude nearest the equator.
func (c *Context) computeLatticeStep() error {
	p := c.params
	latMin, latMax, _, _, ok := c.geoBounds(0, p.Width-1, 0, p.Height-1)
	if !ok {
		return fmt.Errorf("%w: image corners are not geocoded", ErrInvalidConfig)
	}
	ground, err := c.groundRangeSpacing()
	if err != nil {
		return err
	}
	spacing := math.Min(ground, p.AzimuthSpacing)

	minAbsLat := 0.0
	if latMin*latMax > 0 {
		minAbsLat = math.Min(math.Abs(latMin), math.Abs(latMax)) * math.Pi / 180
	}
	delLat := spacing / meanEarthRadius * 180 / math.Pi
	delLon := spacing / (meanEarthRadius * math.Cos(minAbsLat)) * 180 / math.Pi
	c.delLat = math.Min(delLat, delLon)
	c.delLon = c.delLat
	return nil
}

// groundRangeSpacing is the range spacing projected to the ground at the
// scene centre. Ground-range products already have it.
func (c *Context) groundRangeSpacing() (float64, error) {
	p := c.params
	if p.IsSRGR() {
		return p.RangeSpacing, nil
	}
	la, lo, ok := c.gc.PixelToGeo(0.5*float64(p.Width), 0.5*float64(p.Height))
	if !ok {
		return 0, fmt.Errorf("%w: scene centre is not geocoded", ErrInvalidConfig)
	}
	pt := geometry.GeoToECEF(la, lo, 0)
	pos := c.geom.Locate(pt)
	if pos.Status != rangedoppler.Valid {
		return 0, fmt.Errorf("%w: scene centre does not locate: %v", ErrInvalidConfig, pos.Status)
	}
	inc := geometry.IncidenceAngle(pt, pos.Sensor)
	return p.RangeSpacing / math.Sin(inc*math.Pi/180), nil
}
