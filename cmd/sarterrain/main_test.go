package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarterrain/internal/config"
	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/georef"
	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/product"
	"github.com/banshee-data/sarterrain/internal/rundb"
	"github.com/banshee-data/sarterrain/internal/synthetic"
)

func quietLogs(t *testing.T) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
}

func writeScene(t *testing.T, dir string, extra ...string) (meta, demPath string) {
	t.Helper()
	args := append([]string{"-out", dir, "-width", "64", "-height", "48"}, extra...)
	require.NoError(t, runSynth(args))
	return filepath.Join(dir, synthetic.MetadataFile), filepath.Join(dir, synthetic.DEMFile)
}

func TestCommands_EndToEnd(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	meta, demPath := writeScene(t, filepath.Join(dir, "scene"), "-terrain", "ramp", "-relief", "200")
	dbPath := filepath.Join(dir, "runs.db")
	ctx := context.Background()

	flat := filepath.Join(dir, "flat")
	plots := filepath.Join(dir, "plots")
	require.NoError(t, runFlatten(ctx, []string{
		"-product", meta, "-dem", demPath, "-out", flat, "-db", dbPath, "-plots", plots,
	}))
	m, err := product.Load(filepath.Join(flat, synthetic.MetadataFile))
	require.NoError(t, err)
	gamma, ok := m.Band("Gamma0")
	require.True(t, ok)
	b, err := m.LoadBand(flat, gamma)
	require.NoError(t, err)
	assert.Equal(t, 64, b.Width)
	for _, name := range []string{"Gamma0.png", "range_profile.png"} {
		_, err := os.Stat(filepath.Join(plots, name))
		assert.NoError(t, err, name)
	}

	geo := filepath.Join(dir, "geo")
	require.NoError(t, runGeoref(ctx, []string{"-product", meta, "-dem", demPath, "-out", geo, "-db", dbPath}))
	m, err = product.Load(filepath.Join(geo, synthetic.MetadataFile))
	require.NoError(t, err)
	for _, name := range []string{"Beta0", georef.LatitudeBandName, georef.LongitudeBandName} {
		_, ok := m.Band(name)
		assert.True(t, ok, name)
	}

	html := filepath.Join(dir, "report.html")
	require.NoError(t, runReport([]string{"-db", dbPath, "-out", html}))
	data, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "georef tile counters")

	db, err := rundb.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, rundb.StatusComplete, r.Status, r.Operator)
		summaries, err := db.ListBandSummaries(r.RunID)
		require.NoError(t, err)
		assert.NotEmpty(t, summaries, r.Operator)
	}
}

func TestCommands_MissingFlags(t *testing.T) {
	quietLogs(t)
	ctx := context.Background()
	assert.ErrorIs(t, runSynth(nil), errMissingFlag)
	assert.ErrorIs(t, runFlatten(ctx, []string{"-out", "x"}), errMissingFlag)
	assert.ErrorIs(t, runGeoref(ctx, []string{"-product", "x.json"}), errMissingFlag)
	assert.ErrorIs(t, runReport(nil), errMissingFlag)
	assert.Error(t, runSynth([]string{"-bogus"}))
}

func TestRunSynth_BadTerrain(t *testing.T) {
	quietLogs(t)
	assert.Error(t, runSynth([]string{"-out", t.TempDir(), "-terrain", "cliff"}))
}

func TestOpenDEM(t *testing.T) {
	quietLogs(t)
	_, demPath := writeScene(t, t.TempDir())
	cfg := config.EmptyTuningConfig()

	elev, err := openDEM(cfg, demPath)
	require.NoError(t, err)
	assert.Equal(t, -32768.0, elev.NoDataValue())

	_, err = openDEM(cfg, filepath.Join(t.TempDir(), "missing.asc"))
	assert.Error(t, err)

	name := "NOPE"
	cfg.DEMName = &name
	_, err = openDEM(cfg, "")
	assert.ErrorIs(t, err, dem.ErrUnsupportedDEM)
}

func TestRunReport_EmptyDB(t *testing.T) {
	quietLogs(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	err := runReport([]string{"-db", dbPath, "-out", filepath.Join(t.TempDir(), "r.html")})
	assert.ErrorIs(t, err, rundb.ErrRunNotFound)
}

func TestRecorder_Nil(t *testing.T) {
	var r *recorder
	assert.Equal(t, monitoring.LogSink{}, r.Sink())
	assert.NoError(t, r.finish(nil))
	assert.ErrorIs(t, r.finish(errMissingFlag), errMissingFlag)
}

func TestLogProgress(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) { lines = append(lines, format) })
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	p := logProgress("flatten")
	for i := 1; i <= 20; i++ {
		p(i, 20)
	}
	assert.Len(t, lines, 10)
}
