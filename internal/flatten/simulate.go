package flatten

import (
	"context"
	"math"

	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/overlap"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/terrain"
)

// cancelCheckRows is how many DEM rows are processed between checks of
// the context.
const cancelCheckRows = 16

// SimulatedImage is the accumulated illuminated area of one tile, in units
// of the pixel area. Splatted is the total passed to Splat and Dropped the
// part of it that fell outside Rect.
type SimulatedImage struct {
	Rect     raster.Rect
	Data     []float64
	Splatted float64
	Dropped  float64
}

// NewSimulatedImage returns a zeroed image covering r.
func NewSimulatedImage(r raster.Rect) *SimulatedImage {
	return &SimulatedImage{Rect: r, Data: make([]float64, r.Width*r.Height)}
}

// At returns the value at image pixel (x, y), which must be inside Rect.
func (s *SimulatedImage) At(x, y int) float64 {
	return s.Data[(y-s.Rect.Y)*s.Rect.Width+x-s.Rect.X]
}

func (s *SimulatedImage) add(x, y int, v float64) {
	if !s.Rect.Contains(x, y) {
		s.Dropped += v
		return
	}
	s.Data[(y-s.Rect.Y)*s.Rect.Width+x-s.Rect.X] += v
}

// Splat distributes v bilinearly over the four pixels around the
// fractional position (rangeIndex, azimuthIndex). Shares falling outside
// Rect are dropped.
func (s *SimulatedImage) Splat(rangeIndex, azimuthIndex, v float64) {
	ir0 := int(math.Floor(rangeIndex))
	ia0 := int(math.Floor(azimuthIndex))
	wr := rangeIndex - float64(ir0)
	wa := azimuthIndex - float64(ia0)
	s.Splatted += v

	s.add(ir0, ia0, (1-wr)*(1-wa)*v)
	s.add(ir0, ia0+1, (1-wr)*wa*v)
	s.add(ir0+1, ia0, wr*(1-wa)*v)
	s.add(ir0+1, ia0+1, wr*wa*v)
}

// Sum returns the total accumulated value.
func (s *SimulatedImage) Sum() float64 {
	var t float64
	for _, v := range s.Data {
		t += v
	}
	return t
}

// post is one DEM post projected into the image.
type post struct {
	rangeIndex   float64
	azimuthIndex float64
	area         float64
	elevation    float64
	save         bool
	ok           bool
}

// Simulate builds the simulated image for tile. It reads the DEM over the
// tile grown by the prepared overlap extent. A nil image with no error
// means the DEM has no data anywhere in the window.
func (c *Context) Simulate(ctx context.Context, tile raster.Rect) (*SimulatedImage, monitoring.TileStats, error) {
	stats := monitoring.TileStats{
		Operator: Operator,
		X0:       tile.X, Y0: tile.Y, Width: tile.Width, Height: tile.Height,
	}
	win := overlap.Window(tile, c.cfg.TileSize, c.extent, c.image)
	dt, valid := terrain.LoadTile(c.elev, c.gc, win.X, win.Y, win.Width, win.Height)
	if !valid {
		stats.NoDataDEM = win.Width * win.Height
		return nil, stats, nil
	}

	sim := NewSimulatedImage(tile)
	row := make([]post, win.Width)
	for y := win.Y; y < win.MaxY(); y++ {
		if (y-win.Y)%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		for i := range row {
			row[i] = c.project(dt, win.X+i, y, tile, &stats)
		}
		c.sweep(row, sim, &stats)
	}
	return sim, stats, nil
}

// project locates DEM post (x, y) and computes its illuminated area and
// elevation angle.
func (c *Context) project(dt *terrain.Tile, x, y int, tile raster.Rect, stats *monitoring.TileStats) post {
	stats.Processed++
	p, ok := dt.EarthPoint(x, y)
	if !ok {
		stats.NoDataDEM++
		return post{}
	}

	pos := c.geom.Locate(p)
	switch pos.Status {
	case rangedoppler.Valid:
	case rangedoppler.OutOfSwath:
		stats.NotValid++
		return post{}
	case rangedoppler.NoConvergence:
		stats.NoConvergence++
		return post{}
	default:
		stats.OutOfRange++
		return post{}
	}

	area, ok := terrain.IlluminatedArea(dt.LocalGeometry(x, y, p, pos.Sensor))
	if !ok {
		stats.NoDataDEM++
		return post{}
	}

	ri, az := pos.RangeIndex, pos.AzimuthIndex
	return post{
		rangeIndex:   ri,
		azimuthIndex: az,
		area:         area,
		elevation:    geometry.ElevationAngle(pos.SlantRange, p, pos.Sensor),
		save: ri >= float64(tile.X) && ri < float64(tile.MaxX()) &&
			az > float64(tile.Y-1) && az < float64(tile.MaxY()),
		ok: true,
	}
}

// sweep walks one DEM row from near to far range. A post is visible only
// if its elevation angle exceeds every angle seen before it on the row;
// visible posts inside the tile are accumulated.
func (c *Context) sweep(row []post, sim *SimulatedImage, stats *monitoring.TileStats) {
	n := len(row)
	maxElev := 0.0
	for k := 0; k < n; k++ {
		i := k
		if !c.params.NearRangeOnLeft {
			i = n - 1 - k
		}
		pt := row[i]
		if !pt.ok || !pt.save {
			continue
		}
		if pt.elevation <= maxElev {
			stats.Shadowed++
			continue
		}
		maxElev = pt.elevation
		sim.Splat(pt.rangeIndex, pt.azimuthIndex, pt.area/c.beta0)
		stats.Accumulated++
	}
}
