// Package flatten implements radiometric terrain flattening: every DEM cell
// is projected into the image, its illuminated area is accumulated into a
// simulated image, and the source bands are divided by it.
package flatten

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/sarterrain/internal/config"
	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/overlap"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/units"
)

// Operator is the name recorded in tile diagnostics.
const Operator = "flatten"

// SimulatedBandName is the optional output band holding the simulated image.
const SimulatedBandName = "simulatedImage"

var (
	ErrNoSourceBands = errors.New("flatten: no source bands")
	ErrInvalidConfig = errors.New("flatten: invalid config")
)

// Config holds the operator settings. A zero TileSize or OverlapMargin is
// replaced by the config.TuningConfig default. AdditionalOverlap is used as
// given, so zero reads only the one-row border overlap.Window always adds.
type Config struct {
	TileSize             int
	Workers              int
	OverlapMargin        float64
	AdditionalOverlap    float64
	NoDataValue          float64
	OutputSimulatedImage bool

	// Sink receives per-tile diagnostics; nil discards them.
	Sink monitoring.Sink
}

// ConfigFromTuning copies the flattening settings out of a tuning config.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		TileSize:             t.GetTileSize(),
		Workers:              t.GetWorkers(),
		OverlapMargin:        t.GetOverlapMargin(),
		AdditionalOverlap:    t.GetAdditionalOverlap(),
		NoDataValue:          t.GetNoDataValue(),
		OutputSimulatedImage: t.GetOutputSimulatedImage(),
	}
}

func (c Config) withDefaults() Config {
	d := config.EmptyTuningConfig()
	if c.TileSize == 0 {
		c.TileSize = d.GetTileSize()
	}
	if c.OverlapMargin == 0 {
		c.OverlapMargin = d.GetOverlapMargin()
	}
	if c.Sink == nil {
		c.Sink = monitoring.DiscardSink{}
	}
	return c
}

// Context is everything a tile needs, computed once by Prepare. It is not
// modified afterwards and is safe for concurrent use.
type Context struct {
	geom    *rangedoppler.Geometry
	params  rangedoppler.Params
	elev    dem.ElevationModel
	gc      geocoding.Geocoding
	sources []*raster.Band
	cfg     Config

	beta0  float64
	extent overlap.Extent
	image  raster.Rect
}

// Prepare validates the inputs and estimates the azimuth overlap from the
// centre column. When no centre-column row locates, the overlap margin
// alone is used.
func Prepare(geom *rangedoppler.Geometry, elev dem.ElevationModel, gc geocoding.Geocoding, sources []*raster.Band, cfg Config) (*Context, error) {
	if geom == nil || elev == nil || gc == nil {
		return nil, fmt.Errorf("%w: geometry, DEM and geocoding are required", ErrInvalidConfig)
	}
	if len(sources) == 0 {
		return nil, ErrNoSourceBands
	}
	cfg = cfg.withDefaults()
	if cfg.TileSize < 0 || cfg.Workers < 0 || cfg.AdditionalOverlap < 0 {
		return nil, fmt.Errorf("%w: tile size %d, workers %d, additional overlap %v",
			ErrInvalidConfig, cfg.TileSize, cfg.Workers, cfg.AdditionalOverlap)
	}

	p := geom.Params()
	for _, b := range sources {
		if err := b.CheckSize(p.Width, p.Height); err != nil {
			return nil, fmt.Errorf("flatten: %w", err)
		}
		if b.Unit == units.Unknown {
			monitoring.Logf("flatten: band %q has no unit, treating it as intensity", b.Name)
		}
	}

	pct, ok := overlap.CenterColumn(geom, elev, gc, cfg.TileSize, cfg.OverlapMargin)
	if !ok {
		monitoring.Logf("flatten: centre column does not locate, using overlap margin %.3f", cfg.OverlapMargin)
		pct = cfg.OverlapMargin
	}
	c := &Context{
		geom:    geom,
		params:  p,
		elev:    elev,
		gc:      gc,
		sources: sources,
		cfg:     cfg,
		beta0:   geom.Beta0(),
		extent:  overlap.FromPercentage(pct).Grow(cfg.AdditionalOverlap),
		image:   raster.Rect{Width: p.Width, Height: p.Height},
	}
	monitoring.Logf("flatten: %dx%d, %d bands, tile rows %d, overlap up %.3f down %.3f",
		p.Width, p.Height, len(sources), cfg.TileSize, c.extent.Up, c.extent.Down)
	return c, nil
}

// Extent returns the read extent applied around every tile.
func (c *Context) Extent() overlap.Extent { return c.extent }

// Tiles returns full-width strips of TileSize rows. Keeping whole rows in
// one tile lets the shadow sweep see the complete range line.
func (c *Context) Tiles() []raster.Rect {
	return raster.Strips(c.params.Width, c.params.Height, c.cfg.TileSize)
}

// Output holds the flattened bands and, when requested, the simulated image.
type Output struct {
	Bands     []*raster.Band
	Simulated *raster.Band
}

// OutputBandName maps a source band name to its flattened name.
func OutputBandName(name string) string {
	return strings.Replace(name, "Beta0", "Gamma0", 1)
}

// NewOutput allocates output bands filled with no-data.
func (c *Context) NewOutput() *Output {
	o := &Output{Bands: make([]*raster.Band, len(c.sources))}
	for i, src := range c.sources {
		o.Bands[i] = raster.NewBand(OutputBandName(src.Name), src.Unit, src.Width, src.Height, src.NoData)
	}
	if c.cfg.OutputSimulatedImage {
		o.Simulated = raster.NewBand(SimulatedBandName, units.Intensity, c.params.Width, c.params.Height, c.cfg.NoDataValue)
	}
	return o
}

// ComputeTile simulates tile and writes the normalised pixels into out.
// Only pixels inside tile are written.
func (c *Context) ComputeTile(ctx context.Context, tile raster.Rect, out *Output) error {
	start := time.Now()
	sim, stats, err := c.Simulate(ctx, tile)
	if err != nil {
		return err
	}
	if sim != nil {
		c.normalise(tile, sim, out)
	}
	stats.Duration = time.Since(start)
	c.cfg.Sink.RecordTile(stats)
	return nil
}

func (c *Context) normalise(tile raster.Rect, sim *SimulatedImage, out *Output) {
	for y := tile.Y; y < tile.MaxY(); y++ {
		for x := tile.X; x < tile.MaxX(); x++ {
			s := sim.At(x, y)
			for i, src := range c.sources {
				v := src.At(x, y)
				dst := out.Bands[i]
				if !src.Unit.IsBackscatter() {
					dst.Set(x, y, v)
					continue
				}
				if v == src.NoData || s == 0 || s == src.NoData {
					dst.Set(x, y, dst.NoData)
					continue
				}
				dst.Set(x, y, src.Unit.Normalize(v, s))
			}
			if out.Simulated != nil && s != 0 {
				out.Simulated.Set(x, y, s)
			}
		}
	}
}

// Run flattens the whole image on Workers goroutines.
func (c *Context) Run(ctx context.Context, progress raster.ProgressFunc) (*Output, error) {
	out := c.NewOutput()
	err := raster.Dispatch(ctx, c.Tiles(), c.cfg.Workers, func(ctx context.Context, tile raster.Rect) error {
		return c.ComputeTile(ctx, tile, out)
	}, progress)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return out, nil
}
