package raster

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// TileFunc processes one tile. It must only write pixels inside its tile.
type TileFunc func(ctx context.Context, tile Rect) error

// ProgressFunc is called after every completed tile with the number done
// so far and the total. It may be called from several goroutines.
type ProgressFunc func(done, total int)

// Dispatch runs fn over tiles on at most workers goroutines. The first
// error cancels the remaining tiles and is returned; a cancelled ctx stops
// dispatch between tiles and returns ctx.Err().
func Dispatch(ctx context.Context, tiles []Rect, workers int, fn TileFunc, progress ProgressFunc) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	total := len(tiles)
	for _, tile := range tiles {
		tile := tile
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, tile); err != nil {
				return err
			}
			n := done.Add(1)
			if progress != nil {
				progress(int(n), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
