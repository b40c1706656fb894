package raster

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sarterrain/internal/units"
)

// Band is a dense row-major float64 image.
type Band struct {
	Name   string
	Unit   units.Unit
	Width  int
	Height int
	NoData float64
	Data   []float64
}

// NewBand allocates a band filled with its no-data value.
func NewBand(name string, unit units.Unit, width, height int, noData float64) *Band {
	b := &Band{Name: name, Unit: unit, Width: width, Height: height, NoData: noData,
		Data: make([]float64, width*height)}
	if noData != 0 {
		b.Fill(noData)
	}
	return b
}

// Bounds returns the band rectangle.
func (b *Band) Bounds() Rect { return Rect{Width: b.Width, Height: b.Height} }

// At returns the value at (x, y).
func (b *Band) At(x, y int) float64 { return b.Data[y*b.Width+x] }

// Set writes v at (x, y).
func (b *Band) Set(x, y int, v float64) { b.Data[y*b.Width+x] = v }

// Row returns row y, sharing storage with the band.
func (b *Band) Row(y int) []float64 { return b.Data[y*b.Width : (y+1)*b.Width] }

// Fill sets every pixel to v.
func (b *Band) Fill(v float64) {
	for i := range b.Data {
		b.Data[i] = v
	}
}

// IsNoData reports whether v is the band's no-data value.
func (b *Band) IsNoData(v float64) bool { return v == b.NoData }

// Valid returns the values that are not no-data.
func (b *Band) Valid() []float64 {
	out := make([]float64, 0, len(b.Data))
	for _, v := range b.Data {
		if v != b.NoData {
			out = append(out, v)
		}
	}
	return out
}

// Range returns the minimum and maximum valid value; ok is false when the
// band has none.
func (b *Band) Range() (lo, hi float64, ok bool) {
	v := b.Valid()
	if len(v) == 0 {
		return 0, 0, false
	}
	return floats.Min(v), floats.Max(v), true
}

// CheckSize returns an error unless b is width x height.
func (b *Band) CheckSize(width, height int) error {
	if b.Width != width || b.Height != height || len(b.Data) != width*height {
		return fmt.Errorf("band %q is %dx%d, want %dx%d", b.Name, b.Width, b.Height, width, height)
	}
	return nil
}
