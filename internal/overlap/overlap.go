// Package overlap estimates how far terrain displaces ground points in
// azimuth, so an operator can read enough extra rows for a tile to receive
// every contribution that lands in it.
package overlap

import (
	"math"

	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
)

// DefaultMargin is added to the centre-column estimate, following its sign.
const DefaultMargin = 0.05

// perTileMargin widens the sampled per-tile extremes.
const perTileMargin = 0.5

// Extent is the extra read area around a tile, each side as a fraction of
// the tile size.
type Extent struct {
	Up, Down    float64
	Left, Right float64
}

// Grow adds f to every side.
func (e Extent) Grow(f float64) Extent {
	return Extent{Up: e.Up + f, Down: e.Down + f, Left: e.Left + f, Right: e.Right + f}
}

// FromPercentage converts a signed azimuth offset into an Extent: positive
// reads rows above the tile, negative reads rows below.
func FromPercentage(pct float64) Extent {
	if pct >= 0 {
		return Extent{Up: pct}
	}
	return Extent{Down: -pct}
}

// Window returns the rows and columns to read for tile, clipped to the
// image. Each side grows by its fraction of tileSize rounded up, and by at
// least one pixel: a post just outside the tile can still splat into its
// edge row or column.
func Window(tile raster.Rect, tileSize int, e Extent, image raster.Rect) raster.Rect {
	ts := float64(tileSize)
	grow := func(f float64) int {
		return max(1, int(math.Ceil(ts*f)))
	}
	x0 := tile.X - grow(e.Left)
	x1 := tile.MaxX() + grow(e.Right)
	y0 := tile.Y - grow(e.Up)
	y1 := tile.MaxY() + grow(e.Down)
	return raster.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}.Intersect(image)
}

// azimuthOffset locates the ground under pixel (x, y) and returns its
// rounded azimuth index. ok is false when the DEM or the solver gives
// nothing usable.
func azimuthOffset(g *rangedoppler.Geometry, elev dem.ElevationModel, gc geocoding.Geocoding, x, y int) (int, bool) {
	lat, lon, ok := gc.PixelToGeo(float64(x)+0.5, float64(y)+0.5)
	if !ok {
		return 0, false
	}
	if lon >= 180 {
		lon -= 360
	}
	alt := elev.Elevation(lat, lon)
	if alt == elev.NoDataValue() {
		return 0, false
	}
	pos := g.LocateGeo(lat, lon, alt)
	if pos.Status != rangedoppler.Valid && pos.Status != rangedoppler.OutOfRange {
		return 0, false
	}
	return int(math.Floor(pos.AzimuthIndex + 0.5)), true
}

// CenterColumn estimates a single signed overlap for the whole image from
// the first row at or after tileSize-1 in the centre column whose ground
// point has elevation and locates in the swath. The result is
// (azimuthIndex-row)/tileSize pushed away from zero by margin. ok is false
// when no row qualifies.
func CenterColumn(g *rangedoppler.Geometry, elev dem.ElevationModel, gc geocoding.Geocoding, tileSize int, margin float64) (float64, bool) {
	p := g.Params()
	x := p.Width / 2
	for y := tileSize - 1; y < p.Height; y++ {
		az, ok := azimuthOffset(g, elev, gc, x, y)
		if !ok {
			continue
		}
		pct := float64(az-y) / float64(tileSize)
		if pct >= 0 {
			return pct + margin, true
		}
		return pct - margin, true
	}
	return 0, false
}

// PerTile samples tile on a step-pixel lattice and returns how far up and
// down contributing ground may lie, each widened by half a tile when
// non-zero. Samples that do not locate are skipped.
func PerTile(g *rangedoppler.Geometry, elev dem.ElevationModel, gc geocoding.Geocoding, tile raster.Rect, step, tileSize int) Extent {
	if step <= 0 {
		step = 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := tile.Y; y < tile.MaxY(); y += step {
		for x := tile.X; x < tile.MaxX(); x += step {
			az, ok := azimuthOffset(g, elev, gc, x, y)
			if !ok {
				continue
			}
			pct := float64(az-y) / float64(tileSize)
			lo = math.Min(lo, pct)
			hi = math.Max(hi, pct)
		}
	}

	var e Extent
	if hi > 0 {
		e.Up = hi + perTileMargin
	}
	if lo < 0 {
		e.Down = -lo + perTileMargin
	}
	return e
}
