// Package plotting renders bands and range profiles to PNG files for quick
// inspection of operator output.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sarterrain/internal/raster"
)

// ErrNoValidData is returned when a band has nothing to plot.
var ErrNoValidData = errors.New("plotting: no valid data")

// bandGrid adapts a band to plotter.GridXYZ. No-data cells become NaN.
type bandGrid struct {
	b      *raster.Band
	lo, hi float64
}

func (g bandGrid) Dims() (c, r int) { return g.b.Width, g.b.Height }

func (g bandGrid) Z(c, r int) float64 {
	v := g.b.At(c, r)
	if g.b.IsNoData(v) {
		return math.NaN()
	}
	return v
}

func (g bandGrid) X(c int) float64 { return float64(c) }
func (g bandGrid) Y(r int) float64 { return float64(r) }
func (g bandGrid) Min() float64    { return g.lo }
func (g bandGrid) Max() float64    { return g.hi }

// HeatMap writes b as a colour-mapped image to path. The file type follows
// the extension.
func HeatMap(b *raster.Band, path string) error {
	lo, hi, ok := b.Range()
	if !ok {
		return fmt.Errorf("%s: %w", b.Name, ErrNoValidData)
	}
	if lo == hi {
		hi = lo + 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", b.Name, b.Unit)
	p.X.Label.Text = "Range pixel"
	p.Y.Label.Text = "Azimuth line"
	p.Y.Scale = invertedScale{}

	hm := plotter.NewHeatMap(bandGrid{b: b, lo: lo, hi: hi}, palette.Heat(64, 1))
	hm.NaN = color.Transparent
	p.Add(hm)

	w, h := plotSize(b.Width, b.Height)
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save heat map: %w", err)
	}
	return nil
}

// invertedScale draws increasing azimuth downwards, like the image.
type invertedScale struct{}

func (invertedScale) Normalize(min, max, x float64) float64 {
	return plot.LinearScale{}.Normalize(min, max, max-(x-min))
}

// plotSize keeps the image aspect ratio within a 10 inch box.
func plotSize(width, height int) (vg.Length, vg.Length) {
	const box = 10
	aspect := float64(height) / float64(width)
	if aspect > 1 {
		return vg.Length(box/aspect+1) * vg.Inch, box * vg.Inch
	}
	return box * vg.Inch, vg.Length(box*aspect+1) * vg.Inch
}

// RangeProfile writes one line per band along image row to path. No-data
// samples break the line.
func RangeProfile(bands []*raster.Band, row int, path string) error {
	if len(bands) == 0 {
		return ErrNoValidData
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Range profile, line %d", row)
	p.X.Label.Text = "Range pixel"
	p.Y.Label.Text = "Value"

	colors := generateColors(len(bands))
	plotted := 0
	for i, b := range bands {
		if row < 0 || row >= b.Height {
			return fmt.Errorf("plotting: line %d outside band %q", row, b.Name)
		}
		for j, seg := range profileSegments(b, row) {
			line, err := plotter.NewLine(seg)
			if err != nil {
				return fmt.Errorf("profile %s: %w", b.Name, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			if j == 0 {
				p.Legend.Add(b.Name, line)
			}
			plotted++
		}
	}
	if plotted == 0 {
		return ErrNoValidData
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save range profile: %w", err)
	}
	return nil
}

// profileSegments splits row of b into runs of valid samples.
func profileSegments(b *raster.Band, row int) []plotter.XYs {
	var segs []plotter.XYs
	var cur plotter.XYs
	for x, v := range b.Row(row) {
		if b.IsNoData(v) || math.IsNaN(v) {
			if len(cur) > 0 {
				segs = append(segs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(x), Y: v})
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// generateColors creates a palette of distinct colors for profile lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
