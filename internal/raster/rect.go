// Package raster holds band buffers, tile rectangles and the tile
// dispatcher shared by the operators.
package raster

import "fmt"

// Rect is a pixel rectangle [X, X+Width) x [Y, Y+Height).
type Rect struct {
	X, Y          int
	Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// MaxX is one past the last column.
func (r Rect) MaxX() int { return r.X + r.Width }

// MaxY is one past the last row.
func (r Rect) MaxY() int { return r.Y + r.Height }

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether pixel (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}

// Intersect returns the overlap of r and s, empty when they are disjoint.
func (r Rect) Intersect(s Rect) Rect {
	x0, y0 := max(r.X, s.X), max(r.Y, s.Y)
	x1, y1 := min(r.MaxX(), s.MaxX()), min(r.MaxY(), s.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Tiles splits a width x height image into tiles of at most size x size,
// in row-major order.
func Tiles(width, height, size int) []Rect {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil
	}
	var out []Rect
	for y := 0; y < height; y += size {
		for x := 0; x < width; x += size {
			out = append(out, Rect{X: x, Y: y, Width: min(size, width-x), Height: min(size, height-y)})
		}
	}
	return out
}

// Strips splits a width x height image into full-width tiles of at most
// rows lines.
func Strips(width, height, rows int) []Rect {
	if width <= 0 || height <= 0 || rows <= 0 {
		return nil
	}
	var out []Rect
	for y := 0; y < height; y += rows {
		out = append(out, Rect{Y: y, Width: width, Height: min(rows, height-y)})
	}
	return out
}
