// Package georef rebuilds per-pixel latitude and longitude for a SAR image
// by projecting the DEM into it, so the geo-reference follows the terrain
// rather than the ellipsoid.
package georef

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/sarterrain/internal/config"
	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/overlap"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/units"
)

const (
	// Operator is the name recorded in tile diagnostics.
	Operator = "georef"

	LatitudeBandName  = "lat_band"
	LongitudeBandName = "lon_band"

	// NoData marks latitude and longitude cells that could not be filled.
	NoData = -999.0

	// meanEarthRadius sets the re-grid lattice spacing, metres.
	meanEarthRadius = 6371008.7714
)

var ErrInvalidConfig = errors.New("georef: invalid config")

// Config holds the operator settings. Zero values are replaced by the
// defaults of config.TuningConfig.
type Config struct {
	TileSize          int
	Workers           int
	OverlapSampleStep int
	// OrbitRefinement re-derives each pixel's position from the orbit at
	// its DEM height instead of trusting the geocoding.
	OrbitRefinement bool
	// RegridMethod traverses a regular lat/lon lattice instead of the
	// source pixels.
	RegridMethod bool

	// Sink receives per-tile diagnostics; nil discards them.
	Sink monitoring.Sink
}

// ConfigFromTuning copies the georef settings out of a tuning config.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		TileSize:          t.GetTileSize(),
		Workers:           t.GetWorkers(),
		OverlapSampleStep: t.GetOverlapSampleStep(),
		OrbitRefinement:   t.GetOrbitRefinement(),
		RegridMethod:      t.GetRegridMethod(),
	}
}

func (c Config) withDefaults() Config {
	d := config.EmptyTuningConfig()
	if c.TileSize == 0 {
		c.TileSize = d.GetTileSize()
	}
	if c.OverlapSampleStep == 0 {
		c.OverlapSampleStep = d.GetOverlapSampleStep()
	}
	if c.Sink == nil {
		c.Sink = monitoring.DiscardSink{}
	}
	return c
}

// Context is everything a tile needs, computed once by Prepare. It is safe
// for concurrent use.
type Context struct {
	geom   *rangedoppler.Geometry
	params rangedoppler.Params
	elev   dem.ElevationModel
	gc     geocoding.Geocoding
	cfg    Config
	image  raster.Rect

	// lattice step of the re-grid method, degrees
	delLat, delLon float64
}

// Prepare validates the inputs and, for the re-grid method, derives the
// lattice spacing from the ground pixel spacing.
func Prepare(geom *rangedoppler.Geometry, elev dem.ElevationModel, gc geocoding.Geocoding, cfg Config) (*Context, error) {
	if geom == nil || elev == nil || gc == nil {
		return nil, fmt.Errorf("%w: geometry, DEM and geocoding are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if cfg.TileSize < 0 || cfg.Workers < 0 || cfg.OverlapSampleStep < 0 {
		return nil, fmt.Errorf("%w: tile size %d, workers %d, sample step %d",
			ErrInvalidConfig, cfg.TileSize, cfg.Workers, cfg.OverlapSampleStep)
	}
	p := geom.Params()
	c := &Context{
		geom:   geom,
		params: p,
		elev:   elev,
		gc:     gc,
		cfg:    cfg,
		image:  raster.Rect{Width: p.Width, Height: p.Height},
	}
	if cfg.RegridMethod {
		if err := c.computeLatticeStep(); err != nil {
			return nil, err
		}
		monitoring.Logf("georef: re-grid lattice step %.6g deg", c.delLat)
	}
	return c, nil
}

// Tiles returns full-width strips of TileSize rows.
func (c *Context) Tiles() []raster.Rect {
	return raster.Strips(c.params.Width, c.params.Height, c.cfg.TileSize)
}

// Output holds the latitude and longitude bands.
type Output struct {
	Lat *raster.Band
	Lon *raster.Band
}

// NewOutput allocates the output bands filled with NoData.
func (c *Context) NewOutput() *Output {
	return &Output{
		Lat: raster.NewBand(LatitudeBandName, units.Degrees, c.params.Width, c.params.Height, NoData),
		Lon: raster.NewBand(LongitudeBandName, units.Degrees, c.params.Width, c.params.Height, NoData),
	}
}

// Run geo-references the whole image on Workers goroutines.
func (c *Context) Run(ctx context.Context, progress raster.ProgressFunc) (*Output, error) {
	out := c.NewOutput()
	err := raster.Dispatch(ctx, c.Tiles(), c.cfg.Workers, func(ctx context.Context, tile raster.Rect) error {
		return c.ComputeTile(ctx, tile, out)
	}, progress)
	if err != nil {
		return nil, fmt.Errorf("georef: %w", err)
	}
	return out, nil
}

// ComputeTile projects the DEM around tile into it, fills the holes and
// writes the tile's pixels into out.
func (c *Context) ComputeTile(ctx context.Context, tile raster.Rect, out *Output) error {
	start := time.Now()
	stats := monitoring.TileStats{
		Operator: Operator,
		X0:       tile.X, Y0: tile.Y, Width: tile.Width, Height: tile.Height,
	}
	lat := NewGrid(tile.Width, tile.Height, NoData)
	lon := NewGrid(tile.Width, tile.Height, NoData)

	e := overlap.PerTile(c.geom, c.elev, c.gc, tile, c.cfg.OverlapSampleStep, c.cfg.TileSize)
	win := overlap.Window(tile, c.cfg.TileSize, overlap.Extent{Up: e.Up, Down: e.Down}, c.image)

	var err error
	if c.cfg.RegridMethod {
		err = c.traverseLattice(ctx, tile, win, lat, lon, &stats)
	} else {
		err = c.traversePixels(ctx, tile, win, lat, lon, &stats)
	}
	if err != nil {
		return err
	}

	for y := 0; y < tile.Height; y++ {
		for x := 0; x < tile.Width; x++ {
			la, lo := lat.At(x, y), lon.At(x, y)
			if la == NoData {
				la = lat.FillHole(x, y)
				if la != NoData {
					stats.Filled++
				}
			}
			if lo == NoData {
				lo = lon.FillHole(x, y)
			}
			out.Lat.Set(tile.X+x, tile.Y+y, la)
			out.Lon.Set(tile.X+x, tile.Y+y, lo)
		}
	}
	stats.Duration = time.Since(start)
	c.cfg.Sink.RecordTile(stats)
	return nil
}

// place locates a ground point and, when it images inside tile, writes its
// latitude and longitude at the nearest pixel.
func (c *Context) place(la, lo, alt float64, tile raster.Rect, lat, lon *Grid, stats *monitoring.TileStats) {
	pos := c.geom.LocateGeo(la, lo, alt)
	switch pos.Status {
	case rangedoppler.Valid:
	case rangedoppler.OutOfSwath:
		stats.NotValid++
		return
	case rangedoppler.NoConvergence:
		stats.NoConvergence++
		return
	default:
		stats.OutOfRange++
		return
	}
	az, ri := pos.AzimuthIndex, pos.RangeIndex
	if !(az > float64(tile.Y-1) && az <= float64(tile.MaxY())) {
		return
	}
	if !(ri >= float64(tile.X) && ri < float64(tile.MaxX())) {
		return
	}
	x, y := int(math.Round(ri)), int(math.Round(az))
	if !tile.Contains(x, y) {
		return
	}
	lat.Set(x-tile.X, y-tile.Y, la)
	lon.Set(x-tile.X, y-tile.Y, lo)
	stats.Accumulated++
}

// refine moves the ground point of pixel (x, y) onto the orbit geometry at
// height alt and re-samples the DEM there.
func (c *Context) refine(x, y int, la, lo, alt float64) (float64, float64, float64, bool) {
	seed := geometry.GeoToECEF(la, lo, alt)
	rla, rlo, ok := c.geom.PixelToGeo(float64(x), float64(y), alt, seed)
	if !ok {
		return 0, 0, 0, false
	}
	h := c.elev.Elevation(rla, rlo)
	if h == c.elev.NoDataValue() {
		return 0, 0, 0, false
	}
	return rla, rlo, h, true
}
