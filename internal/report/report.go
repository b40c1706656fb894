// Package report summarises output bands and renders an HTML page of the
// per-tile diagnostics of a recorded run.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/rundb"
)

// Summarize computes the statistics of the valid samples of b.
func Summarize(b *raster.Band) rundb.BandSummary {
	s := rundb.BandSummary{Band: b.Name}
	v := b.Valid()
	s.Valid = len(v)
	if s.Valid == 0 {
		return s
	}
	s.Min, s.Max = floats.Min(v), floats.Max(v)
	if s.Valid == 1 {
		s.Mean = v[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(v, nil)
	return s
}

// Report is everything recorded for one run.
type Report struct {
	Run    *rundb.Run
	Tiles  []monitoring.TileStats
	Totals monitoring.TileStats
	Bands  []rundb.BandSummary
}

// Load reads the run, its tiles and its band summaries from db.
func Load(db *rundb.DB, runID string) (*Report, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	tiles, err := db.ListTiles(runID)
	if err != nil {
		return nil, err
	}
	totals, err := db.RunTotals(runID)
	if err != nil {
		return nil, err
	}
	bands, err := db.ListBandSummaries(runID)
	if err != nil {
		return nil, err
	}
	return &Report{Run: run, Tiles: tiles, Totals: totals, Bands: bands}, nil
}

// Render writes the report page to w.
func (r *Report) Render(w io.Writer) error {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("%s run %s", r.Run.Operator, r.Run.RunID))
	page.AddCharts(r.countsChart(), r.durationChart())
	if len(r.Bands) > 0 {
		page.AddCharts(r.bandsChart())
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *Report) subtitle() string {
	s := fmt.Sprintf("product=%s status=%s tiles=%d processed=%d", r.Run.Product, r.Run.Status, len(r.Tiles), r.Totals.Processed)
	if d := r.Run.Duration(); d > 0 {
		s += fmt.Sprintf(" elapsed=%s", d.Round(time.Millisecond))
	}
	if r.Run.Error != "" {
		s += " error=" + r.Run.Error
	}
	return s
}

func (r *Report) tileLabels() []string {
	labels := make([]string, len(r.Tiles))
	for i, t := range r.Tiles {
		labels[i] = fmt.Sprintf("%d,%d", t.X0, t.Y0)
	}
	return labels
}

// counter names a TileStats field shown in the stacked count chart.
type counter struct {
	name string
	get  func(monitoring.TileStats) int
}

var counters = []counter{
	{"accumulated", func(s monitoring.TileStats) int { return s.Accumulated }},
	{"shadowed", func(s monitoring.TileStats) int { return s.Shadowed }},
	{"filled", func(s monitoring.TileStats) int { return s.Filled }},
	{"no DEM", func(s monitoring.TileStats) int { return s.NoDataDEM }},
	{"not valid", func(s monitoring.TileStats) int { return s.NotValid }},
	{"no convergence", func(s monitoring.TileStats) int { return s.NoConvergence }},
	{"out of range", func(s monitoring.TileStats) int { return s.OutOfRange }},
}

func (r *Report) countsChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s tile counters", r.Run.Operator), Subtitle: r.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tile (x0,y0)"}),
	)
	bar.SetXAxis(r.tileLabels())
	for _, c := range counters {
		data := make([]opts.BarData, len(r.Tiles))
		for i, t := range r.Tiles {
			data[i] = opts.BarData{Value: c.get(t)}
		}
		bar.AddSeries(c.name, data, charts.WithBarChartOpts(opts.BarChart{Stack: "posts"}))
	}
	return bar
}

func (r *Report) durationChart() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tile duration", Subtitle: fmt.Sprintf("total=%s", r.Totals.Duration.Round(time.Millisecond))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	data := make([]opts.LineData, len(r.Tiles))
	for i, t := range r.Tiles {
		data[i] = opts.LineData{Value: float64(t.Duration.Microseconds()) / 1000}
	}
	line.SetXAxis(r.tileLabels()).AddSeries("duration", data)
	return line
}

func (r *Report) bandsChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Output bands"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	names := make([]string, len(r.Bands))
	mean := make([]opts.BarData, len(r.Bands))
	std := make([]opts.BarData, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = fmt.Sprintf("%s (%d valid)", b.Band, b.Valid)
		mean[i] = opts.BarData{Value: b.Mean}
		std[i] = opts.BarData{Value: b.StdDev}
	}
	bar.SetXAxis(names).
		AddSeries("mean", mean, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("std dev", std)
	return bar
}
