package rundb

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/timeutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Migrates(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.StartRun("flatten", "mem", nil)
	require.NoError(t, err)
	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	cfg := map[string]int{"tile_size": 64}
	run, err := db.StartRun("flatten", "scene.json", cfg)
	require.NoError(t, err)
	assert.Len(t, run.RunID, 36)

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.JSONEq(t, `{"tile_size":64}`, string(got.ConfigJSON))
	assert.Nil(t, got.FinishedAtNs)
	assert.Zero(t, got.Duration())

	require.NoError(t, db.FinishRun(run.RunID, nil))
	got, err = db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	require.NotNil(t, got.FinishedAtNs)
	assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))

	failed, err := db.StartRun("georef", "scene.json", nil)
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(failed.RunID, errors.New("boom")))
	got, err = db.GetRun(failed.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunDuration_MockClock(t *testing.T) {
	db := openTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	db.Clock = clock

	run, err := db.StartRun("georef", "scene.json", nil)
	require.NoError(t, err)
	clock.Advance(3 * time.Second)
	require.NoError(t, db.FinishRun(run.RunID, nil))

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, got.Duration())
	assert.Equal(t, clock.Now().UnixNano(), *got.FinishedAtNs)
}

func TestRunNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun("missing", nil), ErrRunNotFound)
}

func TestTileSink(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun("flatten", "scene.json", nil)
	require.NoError(t, err)

	sink := db.Sink(run.RunID)
	var _ monitoring.Sink = sink

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sink.RecordTile(monitoring.TileStats{
				Operator: "flatten", Y0: 16 * i, Width: 64, Height: 16,
				Processed: 100, Accumulated: 90, Shadowed: 4, NotValid: 6,
				Duration: time.Millisecond,
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, sink.Err())

	tiles, err := db.ListTiles(run.RunID)
	require.NoError(t, err)
	require.Len(t, tiles, 4)
	assert.Equal(t, 0, tiles[0].Y0)
	assert.Equal(t, 48, tiles[3].Y0)
	assert.Equal(t, time.Millisecond, tiles[2].Duration)

	total, err := db.RunTotals(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 400, total.Processed)
	assert.Equal(t, 360, total.Accumulated)
	assert.Equal(t, 16, total.Shadowed)
	assert.Equal(t, 4*time.Millisecond, total.Duration)
}

func TestTileSink_KeepsFirstError(t *testing.T) {
	db := openTestDB(t)
	sink := db.Sink("no-such-run")
	sink.RecordTile(monitoring.TileStats{Operator: "flatten"})
	assert.Error(t, sink.Err())
}

func TestBandSummaries(t *testing.T) {
	db := openTestDB(t)
	run, err := db.StartRun("flatten", "scene.json", nil)
	require.NoError(t, err)

	require.NoError(t, db.SaveBandSummary(run.RunID, BandSummary{Band: "Gamma0", Valid: 10, Min: 0.5, Max: 2, Mean: 1, StdDev: 0.25}))
	require.NoError(t, db.SaveBandSummary(run.RunID, BandSummary{Band: "Gamma0", Valid: 12, Min: 0.5, Max: 2, Mean: 1.1, StdDev: 0.2}))
	require.NoError(t, db.SaveBandSummary(run.RunID, BandSummary{Band: "Amplitude", Valid: 3}))

	got, err := db.ListBandSummaries(run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Amplitude", got[0].Band)
	assert.Equal(t, 12, got[1].Valid)
	assert.InDelta(t, 1.1, got[1].Mean, 1e-12)
}
