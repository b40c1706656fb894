package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/rundb"
	"github.com/banshee-data/sarterrain/internal/units"
)

func TestSummarize(t *testing.T) {
	b := raster.NewBand("Gamma0", units.Intensity, 3, 2, -1)
	copy(b.Data, []float64{2, 4, 4, 4, 5, -1})

	s := Summarize(b)
	assert.Equal(t, "Gamma0", s.Band)
	assert.Equal(t, 5, s.Valid)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.InDelta(t, 3.8, s.Mean, 1e-12)
	// Unbiased: sum of squared deviations 4.8 over 4.
	assert.InDelta(t, 1.0954451150103321, s.StdDev, 1e-12)
}

func TestSummarize_Degenerate(t *testing.T) {
	empty := raster.NewBand("empty", units.Intensity, 2, 2, -1)
	assert.Equal(t, rundb.BandSummary{Band: "empty"}, Summarize(empty))

	one := raster.NewBand("one", units.Intensity, 2, 1, -1)
	one.Set(1, 0, 7)
	s := Summarize(one)
	assert.Equal(t, 1, s.Valid)
	assert.Equal(t, 7.0, s.Mean)
	assert.Zero(t, s.StdDev)
}

func recordedRun(t *testing.T, runErr error) (*rundb.DB, string) {
	t.Helper()
	db, err := rundb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	run, err := db.StartRun("flatten", "scene.json", nil)
	require.NoError(t, err)
	sink := db.Sink(run.RunID)
	for i := 0; i < 3; i++ {
		sink.RecordTile(monitoring.TileStats{
			Operator: "flatten", Y0: 16 * i, Width: 64, Height: 16,
			Processed: 50, Accumulated: 40, Shadowed: 7, NotValid: 3,
			Duration: 2 * time.Millisecond,
		})
	}
	require.NoError(t, sink.Err())

	b := raster.NewBand("Gamma0", units.Intensity, 2, 2, -1)
	copy(b.Data, []float64{1, 2, 3, 4})
	require.NoError(t, db.SaveBandSummary(run.RunID, Summarize(b)))
	require.NoError(t, db.FinishRun(run.RunID, runErr))
	return db, run.RunID
}

func TestLoad(t *testing.T) {
	db, runID := recordedRun(t, nil)

	r, err := Load(db, runID)
	require.NoError(t, err)
	assert.Equal(t, rundb.StatusComplete, r.Run.Status)
	assert.Len(t, r.Tiles, 3)
	assert.Equal(t, 150, r.Totals.Processed)
	assert.Equal(t, 21, r.Totals.Shadowed)
	require.Len(t, r.Bands, 1)
	assert.InDelta(t, 2.5, r.Bands[0].Mean, 1e-12)

	_, err = Load(db, "missing")
	assert.ErrorIs(t, err, rundb.ErrRunNotFound)
}

func TestRender(t *testing.T) {
	db, runID := recordedRun(t, errors.New("dem unavailable"))
	r, err := Load(db, runID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	html := buf.String()
	assert.Contains(t, html, "flatten tile counters")
	assert.Contains(t, html, "Tile duration")
	assert.Contains(t, html, "Output bands")
	assert.Contains(t, html, "dem unavailable")
	assert.Equal(t, []string{"0,0", "0,16", "0,32"}, r.tileLabels())
}

func TestRender_NoBands(t *testing.T) {
	r := &Report{Run: &rundb.Run{RunID: "r1", Operator: "georef", Status: rundb.StatusRunning}}
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	assert.NotContains(t, buf.String(), "Output bands")
	assert.NotContains(t, r.subtitle(), "elapsed")
}

func TestWriteFile(t *testing.T) {
	db, runID := recordedRun(t, nil)
	r, err := Load(db, runID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")

	assert.Error(t, r.WriteFile(filepath.Join(t.TempDir(), "missing", "report.html")))
}
