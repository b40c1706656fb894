package georef

import "github.com/banshee-data/sarterrain/internal/geometry"

// Grid is a row-major w x h array of values with a no-data marker.
type Grid struct {
	Width, Height int
	NoData        float64
	Data          []float64
}

// NewGrid returns a grid filled with noData.
func NewGrid(width, height int, noData float64) *Grid {
	g := &Grid{Width: width, Height: height, NoData: noData, Data: make([]float64, width*height)}
	for i := range g.Data {
		g.Data[i] = noData
	}
	return g
}

// At returns the value at (x, y).
func (g *Grid) At(x, y int) float64 { return g.Data[y*g.Width+x] }

// Set writes v at (x, y).
func (g *Grid) Set(x, y int, v float64) { g.Data[y*g.Width+x] = v }

// FillHole estimates a missing cell from the nearest valid cells in its
// column and row.
//
// The column is searched upwards from (x, y) for the up value, then
// downwards: the first hit becomes the down value when an up value exists,
// otherwise it becomes the up value and the search continues. The row is
// searched the same way for left and right. With both pairs the result is
// the mean of the two linear interpolations; with one pair it is that
// pair's interpolation; otherwise the first single neighbour found among
// left, right, up and down is copied. With none it is NoData.
func (g *Grid) FillHole(x, y int) float64 {
	nd := g.NoData
	vU, vD, vL, vR := nd, nd, nd, nd
	var yU, yD, xL, xR int

	for yy := y; yy >= 0; yy-- {
		if v := g.At(x, yy); v != nd {
			vU, yU = v, yy
			break
		}
	}
	for yy := y; yy < g.Height; yy++ {
		v := g.At(x, yy)
		if v == nd {
			continue
		}
		if vU != nd {
			vD, yD = v, yy
			break
		}
		vU, yU = v, yy
	}

	for xx := x; xx >= 0; xx-- {
		if v := g.At(xx, y); v != nd {
			vL, xL = v, xx
			break
		}
	}
	for xx := x; xx < g.Width; xx++ {
		v := g.At(xx, y)
		if v == nd {
			continue
		}
		if vL != nd {
			vR, xR = v, xx
			break
		}
		vL, xL = v, xx
	}

	haveY := vU != nd && vD != nd
	haveX := vL != nd && vR != nd
	interpY := func() float64 {
		return geometry.InterpolateLinear(float64(yU), vU, float64(yD), vD, float64(y))
	}
	interpX := func() float64 {
		return geometry.InterpolateLinear(float64(xL), vL, float64(xR), vR, float64(x))
	}
	switch {
	case haveY && haveX:
		return 0.5 * (interpY() + interpX())
	case haveY:
		return interpY()
	case haveX:
		return interpX()
	case vL != nd:
		return vL
	case vR != nd:
		return vR
	case vU != nd:
		return vU
	case vD != nd:
		return vD
	}
	return nd
}
