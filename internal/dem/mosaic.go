package dem

import (
	"github.com/dhconnelly/rtreego"
)

// pointTolerance is the side length of the query box used to look up a
// single point in the index, in degrees.
const pointTolerance = 1e-9

// indexedGrid adapts a Grid to rtreego.Spatial.
type indexedGrid struct {
	grid  *Grid
	order int
}

// Bounds implements rtreego.Spatial.
func (e *indexedGrid) Bounds() rtreego.Rect {
	point := rtreego.Point{e.grid.West, e.grid.South}
	lengths := []float64{
		float64(e.grid.Cols) * e.grid.CellSize,
		float64(e.grid.Rows) * e.grid.CellSize,
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Mosaic combines DEM tiles behind a spatial index. Where tiles overlap the
// one added first wins; a tile reporting no-data defers to the next.
type Mosaic struct {
	tree   *rtreego.Rtree
	noData float64
	count  int
}

// NewMosaic indexes grids. Their own no-data values are translated to
// noData.
func NewMosaic(noData float64, grids ...*Grid) *Mosaic {
	m := &Mosaic{tree: rtreego.NewTree(2, 25, 50), noData: noData}
	for _, g := range grids {
		m.Add(g)
	}
	return m
}

// Add indexes one more grid. Add must not be called concurrently with
// Elevation.
func (m *Mosaic) Add(g *Grid) {
	m.tree.Insert(&indexedGrid{grid: g, order: m.count})
	m.count++
}

// Len returns the number of indexed grids.
func (m *Mosaic) Len() int { return m.count }

// NoDataValue implements ElevationModel.
func (m *Mosaic) NoDataValue() float64 { return m.noData }

// Elevation implements ElevationModel.
func (m *Mosaic) Elevation(lat, lon float64) float64 {
	query, err := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{pointTolerance, pointTolerance})
	if err != nil {
		return m.noData
	}
	hits := m.tree.SearchIntersect(query)

	var best *indexedGrid
	bestH := m.noData
	for _, s := range hits {
		e := s.(*indexedGrid)
		if best != nil && e.order > best.order {
			continue
		}
		h := e.grid.Elevation(lat, lon)
		if h == e.grid.NoData {
			continue
		}
		best, bestH = e, h
	}
	return bestH
}
