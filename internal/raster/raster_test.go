package raster

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarterrain/internal/units"
)

func TestTiles_CoverImageOnce(t *testing.T) {
	t.Parallel()
	tiles := Tiles(70, 45, 32)
	require.Len(t, tiles, 6)
	assert.Equal(t, Rect{X: 64, Y: 32, Width: 6, Height: 13}, tiles[5])

	seen := make([]int, 70*45)
	for _, r := range tiles {
		for y := r.Y; y < r.MaxY(); y++ {
			for x := r.X; x < r.MaxX(); x++ {
				seen[y*70+x]++
			}
		}
	}
	for i, n := range seen {
		require.Equal(t, 1, n, "pixel %d", i)
	}

	assert.Nil(t, Tiles(0, 10, 4))
}

func TestStrips(t *testing.T) {
	t.Parallel()
	got := Strips(30, 25, 10)
	want := []Rect{
		{Y: 0, Width: 30, Height: 10},
		{Y: 10, Width: 30, Height: 10},
		{Y: 20, Width: 30, Height: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Strips mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, Strips(30, 25, 0))
}

func TestRect(t *testing.T) {
	t.Parallel()
	r := Rect{X: 10, Y: 20, Width: 5, Height: 4}
	assert.True(t, r.Contains(10, 20))
	assert.True(t, r.Contains(14, 23))
	assert.False(t, r.Contains(15, 23))
	assert.Equal(t, "(10,20 5x4)", r.String())

	assert.Equal(t, Rect{X: 12, Y: 20, Width: 3, Height: 2}, r.Intersect(Rect{X: 12, Y: 0, Width: 50, Height: 22}))
	assert.True(t, r.Intersect(Rect{X: 100, Y: 100, Width: 1, Height: 1}).Empty())
}

func TestBand(t *testing.T) {
	t.Parallel()
	b := NewBand("Beta0", units.Intensity, 4, 3, -1)
	assert.Equal(t, -1.0, b.At(3, 2))
	b.Set(1, 2, 5)
	b.Set(2, 0, -3)
	assert.Equal(t, 5.0, b.Row(2)[1])
	assert.Equal(t, []float64{-3, 5}, b.Valid())

	lo, hi, ok := b.Range()
	require.True(t, ok)
	assert.Equal(t, -3.0, lo)
	assert.Equal(t, 5.0, hi)

	assert.NoError(t, b.CheckSize(4, 3))
	assert.Error(t, b.CheckSize(3, 4))

	empty := NewBand("x", units.Amplitude, 2, 2, 0)
	_, _, ok = empty.Range()
	assert.False(t, ok)
}

func TestFloat32RoundTrip(t *testing.T) {
	t.Parallel()
	b := NewBand("src", units.Amplitude, 3, 2, 0)
	copy(b.Data, []float64{0.5, 1, 1.5, -2, 1e6, 0.25})

	var buf bytes.Buffer
	require.NoError(t, WriteFloat32(&buf, b))
	assert.Equal(t, 3*2*4, buf.Len())

	got := NewBand("src", units.Amplitude, 3, 2, 0)
	require.NoError(t, ReadFloat32(&buf, got))
	if diff := cmp.Diff(b.Data, got.Data); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	short := NewBand("short", units.Amplitude, 3, 3, 0)
	var small bytes.Buffer
	require.NoError(t, WriteFloat32(&small, b))
	assert.Error(t, ReadFloat32(&small, short))
}

func TestSaveLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "band.img")
	b := NewBand("b", units.Intensity, 2, 2, 0)
	copy(b.Data, []float64{1, 2, 3, 4})
	require.NoError(t, SaveFile(path, b))

	got := NewBand("b", units.Intensity, 2, 2, 0)
	require.NoError(t, LoadFile(path, got))
	assert.Equal(t, b.Data, got.Data)

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.img"), got))
	assert.Equal(t, float64(float32(0.1)), Float32NoData(0.1))
}

func TestDispatch_AllTiles(t *testing.T) {
	t.Parallel()
	tiles := Tiles(100, 100, 10)
	out := NewBand("out", units.Intensity, 100, 100, 0)

	var mu sync.Mutex
	var calls []int
	err := Dispatch(context.Background(), tiles, 4, func(_ context.Context, r Rect) error {
		for y := r.Y; y < r.MaxY(); y++ {
			for x := r.X; x < r.MaxX(); x++ {
				out.Set(x, y, 1)
			}
		}
		return nil
	}, func(done, total int) {
		mu.Lock()
		calls = append(calls, done)
		mu.Unlock()
		assert.Equal(t, 100, total)
	})
	require.NoError(t, err)
	assert.Len(t, calls, 100)
	for _, v := range out.Data {
		require.Equal(t, 1.0, v)
	}
}

func TestDispatch_ErrorStops(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var ran atomic.Int32
	err := Dispatch(context.Background(), Tiles(100, 100, 10), 1, func(_ context.Context, r Rect) error {
		ran.Add(1)
		if r.X == 20 && r.Y == 0 {
			return boom
		}
		return nil
	}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, int(ran.Load()), 100)
}

func TestDispatch_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Int32
	err := Dispatch(ctx, Tiles(50, 50, 10), 2, func(context.Context, Rect) error {
		ran.Add(1)
		return nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}
