package dem

import (
	"fmt"
	"math"
)

// Grid is a regular latitude/longitude raster of DEM posts. Row 0 is the
// northern edge; posts sit at cell centres.
type Grid struct {
	Rows, Cols int
	// West and South are the outer edges of the raster in degrees.
	West, South float64
	CellSize    float64
	NoData      float64
	Data        []float64 // row-major, len Rows*Cols
	Resampling  Resampling
}

// NewGrid checks the dimensions of data and returns a Grid.
func NewGrid(rows, cols int, west, south, cellSize, noData float64, data []float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", cols, rows)
	}
	if !(cellSize > 0) {
		return nil, fmt.Errorf("invalid cell size %v", cellSize)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("grid data has %d values, want %d", len(data), rows*cols)
	}
	return &Grid{Rows: rows, Cols: cols, West: west, South: south, CellSize: cellSize, NoData: noData, Data: data}, nil
}

// North returns the northern edge in degrees.
func (g *Grid) North() float64 { return g.South + float64(g.Rows)*g.CellSize }

// East returns the eastern edge in degrees.
func (g *Grid) East() float64 { return g.West + float64(g.Cols)*g.CellSize }

// Contains reports whether the point lies inside the raster extent.
func (g *Grid) Contains(lat, lon float64) bool {
	return lat >= g.South && lat <= g.North() && lon >= g.West && lon <= g.East()
}

// At returns the post at (row, col) with indices clamped to the grid.
func (g *Grid) At(row, col int) float64 {
	row = max(0, min(row, g.Rows-1))
	col = max(0, min(col, g.Cols-1))
	return g.Data[row*g.Cols+col]
}

// NoDataValue implements ElevationModel.
func (g *Grid) NoDataValue() float64 { return g.NoData }

// Elevation implements ElevationModel using the grid's resampling method.
// Any no-data post in the interpolation stencil yields no-data.
func (g *Grid) Elevation(lat, lon float64) float64 {
	if !g.Contains(lat, lon) {
		return g.NoData
	}
	// Fractional post coordinates.
	fc := (lon-g.West)/g.CellSize - 0.5
	fr := (g.North()-lat)/g.CellSize - 0.5

	switch g.Resampling {
	case Nearest:
		return g.At(int(math.Round(fr)), int(math.Round(fc)))
	case Cubic:
		return g.cubic(fr, fc)
	default:
		return g.bilinear(fr, fc)
	}
}

func (g *Grid) bilinear(fr, fc float64) float64 {
	r0 := int(math.Floor(fr))
	c0 := int(math.Floor(fc))
	dr := fr - float64(r0)
	dc := fc - float64(c0)

	h00 := g.At(r0, c0)
	h01 := g.At(r0, c0+1)
	h10 := g.At(r0+1, c0)
	h11 := g.At(r0+1, c0+1)
	if h00 == g.NoData || h01 == g.NoData || h10 == g.NoData || h11 == g.NoData {
		return g.NoData
	}
	top := h00 + dc*(h01-h00)
	bottom := h10 + dc*(h11-h10)
	return top + dr*(bottom-top)
}

// cubicWeights returns Keys cubic convolution weights (a = -0.5) for the
// four posts around a fractional offset d in [0, 1).
func cubicWeights(d float64) [4]float64 {
	const a = -0.5
	w := func(x float64) float64 {
		x = math.Abs(x)
		switch {
		case x <= 1:
			return (a+2)*x*x*x - (a+3)*x*x + 1
		case x < 2:
			return a*x*x*x - 5*a*x*x + 8*a*x - 4*a
		}
		return 0
	}
	return [4]float64{w(1 + d), w(d), w(1 - d), w(2 - d)}
}

func (g *Grid) cubic(fr, fc float64) float64 {
	r0 := int(math.Floor(fr))
	c0 := int(math.Floor(fc))
	wr := cubicWeights(fr - float64(r0))
	wc := cubicWeights(fc - float64(c0))

	sum := 0.0
	for i := 0; i < 4; i++ {
		row := 0.0
		for j := 0; j < 4; j++ {
			h := g.At(r0-1+i, c0-1+j)
			if h == g.NoData {
				return g.NoData
			}
			row += wc[j] * h
		}
		sum += wr[i] * row
	}
	return sum
}
