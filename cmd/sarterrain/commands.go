package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/sarterrain/internal/config"
	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/flatten"
	"github.com/banshee-data/sarterrain/internal/georef"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/plotting"
	"github.com/banshee-data/sarterrain/internal/product"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/report"
	"github.com/banshee-data/sarterrain/internal/rundb"
	"github.com/banshee-data/sarterrain/internal/security"
	"github.com/banshee-data/sarterrain/internal/synthetic"
)

var errMissingFlag = errors.New("missing required flag")

func runSynth(args []string) error {
	def := synthetic.DefaultConfig()
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	out := fs.String("out", "", "Output product directory (required)")
	width := fs.Int("width", def.Width, "Image width in pixels")
	height := fs.Int("height", def.Height, "Image height in lines")
	terrainName := fs.String("terrain", def.Terrain.String(), "Terrain shape: flat, ramp or hill")
	relief := fs.Float64("relief", def.Relief, "Terrain relief in metres")
	srgr := fs.Bool("srgr", false, "Write a ground-range product")
	right := fs.Bool("near-right", false, "Put near range on the right of the image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -out", errMissingFlag)
	}

	terrain, err := synthetic.ParseTerrain(*terrainName)
	if err != nil {
		return err
	}
	cfg := def
	cfg.Width, cfg.Height = *width, *height
	cfg.Terrain, cfg.Relief = terrain, *relief
	cfg.SRGR = *srgr
	cfg.NearRangeOnLeft = !*right

	scene, err := synthetic.New(cfg)
	if err != nil {
		return err
	}
	if err := scene.WriteProduct(*out); err != nil {
		return err
	}
	monitoring.Logf("wrote %dx%d %s scene to %s (DEM %s)", cfg.Width, cfg.Height, terrain,
		*out, filepath.Join(*out, synthetic.DEMFile))
	return nil
}

// operatorFlags are the flags shared by flatten and georef.
type operatorFlags struct {
	fs      *flag.FlagSet
	product *string
	config  *string
	dem     *string
	out     *string
	db      *string
}

func newOperatorFlags(name string) *operatorFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &operatorFlags{
		fs:      fs,
		product: fs.String("product", "", "Product metadata JSON (required)"),
		config:  fs.String("config", "", "Tuning config JSON"),
		dem:     fs.String("dem", "", "Esri ASCII DEM overriding the configured DEM"),
		out:     fs.String("out", "", "Output product directory (required)"),
		db:      fs.String("db", "", "SQLite run database"),
	}
}

func (f *operatorFlags) parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if *f.product == "" {
		return fmt.Errorf("%w: -product", errMissingFlag)
	}
	if *f.out == "" {
		return fmt.Errorf("%w: -out", errMissingFlag)
	}
	return nil
}

// inputs is everything an operator run needs from disk.
type inputs struct {
	cfg  *config.TuningConfig
	meta *product.Metadata
	dir  string
	geom *rangedoppler.Geometry
	elev dem.ElevationModel
}

func loadInputs(f *operatorFlags) (*inputs, error) {
	cfg := config.EmptyTuningConfig()
	if *f.config != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*f.config); err != nil {
			return nil, err
		}
	}
	meta, err := product.Load(*f.product)
	if err != nil {
		return nil, err
	}
	geom, err := meta.Geometry(cfg.GetPolyDegree(), cfg.GetSRGRInterpolate(), cfg.SolverOptions())
	if err != nil {
		return nil, err
	}
	elev, err := openDEM(cfg, *f.dem)
	if err != nil {
		return nil, err
	}
	return &inputs{cfg: cfg, meta: meta, dir: filepath.Dir(*f.product), geom: geom, elev: elev}, nil
}

// openDEM prefers the -dem file, then the configured external DEM, then
// the named DEM under the DEM root.
func openDEM(cfg *config.TuningConfig, path string) (dem.ElevationModel, error) {
	resampling := cfg.GetDEMResampling()
	switch {
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open DEM: %w", err)
		}
		defer f.Close()
		g, err := dem.LoadEsriASCII(f)
		if err != nil {
			return nil, fmt.Errorf("load DEM %s: %w", path, err)
		}
		g.Resampling = resampling
		monitoring.Logf("dem: opened %s (%dx%d, %s)", path, g.Cols, g.Rows, resampling)
		return g, nil
	case cfg.GetExternalDEMFile() != "":
		g, err := dem.OpenExternal(cfg.GetExternalDEMFile(), cfg.GetExternalDEMNoData(), resampling)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		m, err := dem.Open(cfg.GetDEMName(), cfg.GetDEMRoot(), resampling)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// recorder stores a run in the run database. A nil recorder records
// nothing.
type recorder struct {
	db   *rundb.DB
	run  *rundb.Run
	sink *rundb.TileSink
}

func startRecorder(path, operator, productPath string, cfg *config.TuningConfig) (*recorder, error) {
	if path == "" {
		return nil, nil
	}
	db, err := rundb.Open(path)
	if err != nil {
		return nil, err
	}
	run, err := db.StartRun(operator, productPath, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("%s: recording run %s in %s", operator, run.RunID, path)
	return &recorder{db: db, run: run, sink: db.Sink(run.RunID)}, nil
}

func (r *recorder) Sink() monitoring.Sink {
	if r == nil {
		return monitoring.LogSink{}
	}
	return monitoring.MultiSink{monitoring.LogSink{}, r.sink}
}

// finish summarises bands, closes the run with runErr and closes the
// database.
func (r *recorder) finish(runErr error, bands ...*raster.Band) error {
	if r == nil {
		return runErr
	}
	defer r.db.Close()
	if runErr == nil {
		runErr = r.sink.Err()
	}
	if runErr == nil {
		for _, b := range bands {
			if err := r.db.SaveBandSummary(r.run.RunID, report.Summarize(b)); err != nil {
				runErr = err
				break
			}
		}
	}
	if err := r.db.FinishRun(r.run.RunID, runErr); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// logProgress logs every tenth of the tiles. It holds no state, so the
// dispatcher may call it from any goroutine.
func logProgress(operator string) raster.ProgressFunc {
	return func(done, total int) {
		if done == total || done*10/total != (done-1)*10/total {
			monitoring.Logf("%s: %d/%d tiles", operator, done, total)
		}
	}
}

// writeProduct saves bands and a metadata document listing only them.
func writeProduct(meta *product.Metadata, dir string, bands ...*raster.Band) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out := *meta
	out.Bands = nil
	for _, b := range bands {
		if err := out.SaveBand(dir, b); err != nil {
			return err
		}
	}
	return out.Save(filepath.Join(dir, synthetic.MetadataFile))
}

func runFlatten(ctx context.Context, args []string) error {
	f := newOperatorFlags(flatten.Operator)
	plots := f.fs.String("plots", "", "Directory for PNG heat maps and a range profile")
	if err := f.parse(args); err != nil {
		return err
	}
	in, err := loadInputs(f)
	if err != nil {
		return err
	}
	gc, err := in.meta.Geocoding()
	if err != nil {
		return err
	}
	sources := make([]*raster.Band, 0, len(in.meta.Bands))
	for _, info := range in.meta.Bands {
		b, err := in.meta.LoadBand(in.dir, info)
		if err != nil {
			return err
		}
		sources = append(sources, b)
	}

	rec, err := startRecorder(*f.db, flatten.Operator, *f.product, in.cfg)
	if err != nil {
		return err
	}
	cfg := flatten.ConfigFromTuning(in.cfg)
	cfg.Sink = rec.Sink()

	fctx, err := flatten.Prepare(in.geom, in.elev, gc, sources, cfg)
	if err != nil {
		return rec.finish(err)
	}
	out, err := fctx.Run(ctx, logProgress(flatten.Operator))
	if err != nil {
		return rec.finish(err)
	}
	bands := out.Bands
	if out.Simulated != nil {
		bands = append(bands, out.Simulated)
	}
	if err := writeProduct(in.meta, *f.out, bands...); err != nil {
		return rec.finish(err)
	}
	if *plots != "" {
		if err := writePlots(*plots, bands); err != nil {
			return rec.finish(err)
		}
	}
	return rec.finish(nil, bands...)
}

func writePlots(dir string, bands []*raster.Band) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	for _, b := range bands {
		err := plotting.HeatMap(b, filepath.Join(dir, security.SanitizeFilename(b.Name)+".png"))
		if errors.Is(err, plotting.ErrNoValidData) {
			monitoring.Logf("plot %s skipped: %v", b.Name, err)
			continue
		}
		if err != nil {
			return err
		}
	}
	row := bands[0].Height / 2
	err := plotting.RangeProfile(bands, row, filepath.Join(dir, "range_profile.png"))
	if errors.Is(err, plotting.ErrNoValidData) {
		monitoring.Logf("range profile skipped: %v", err)
		return nil
	}
	return err
}

func runGeoref(ctx context.Context, args []string) error {
	f := newOperatorFlags(georef.Operator)
	if err := f.parse(args); err != nil {
		return err
	}
	in, err := loadInputs(f)
	if err != nil {
		return err
	}
	gc, err := in.meta.Geocoding()
	if err != nil {
		return err
	}
	var bands []*raster.Band
	for _, info := range in.meta.Bands {
		b, err := in.meta.LoadBand(in.dir, info)
		if err != nil {
			return err
		}
		bands = append(bands, b)
	}

	rec, err := startRecorder(*f.db, georef.Operator, *f.product, in.cfg)
	if err != nil {
		return err
	}
	cfg := georef.ConfigFromTuning(in.cfg)
	cfg.Sink = rec.Sink()

	gctx, err := georef.Prepare(in.geom, in.elev, gc, cfg)
	if err != nil {
		return rec.finish(err)
	}
	out, err := gctx.Run(ctx, logProgress(georef.Operator))
	if err != nil {
		return rec.finish(err)
	}
	bands = append(bands, out.Lat, out.Lon)
	if err := writeProduct(in.meta, *f.out, bands...); err != nil {
		return rec.finish(err)
	}
	return rec.finish(nil, out.Lat, out.Lon)
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite run database (required)")
	runID := fs.String("run", "", "Run id, defaults to the latest run")
	out := fs.String("out", "report.html", "Output HTML file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("%w: -db", errMissingFlag)
	}

	db, err := rundb.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	id := *runID
	if id == "" {
		runs, err := db.ListRuns(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("%s: %w", *dbPath, rundb.ErrRunNotFound)
		}
		id = runs[0].RunID
	}
	r, err := report.Load(db, id)
	if err != nil {
		return err
	}
	if err := r.WriteFile(*out); err != nil {
		return err
	}
	monitoring.Logf("report for %s run %s written to %s", r.Run.Operator, id, *out)
	return nil
}
