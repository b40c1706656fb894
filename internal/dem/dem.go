// Package dem provides elevation lookup by geodetic position. Every model
// reports missing coverage with its own no-data value, and all models are
// read-only after construction so they can be shared between tiles.
package dem

import (
	"fmt"
	"strings"
)

// ElevationModel returns the height in metres above the ellipsoid at a
// latitude and longitude in degrees, or NoDataValue where it has no data.
type ElevationModel interface {
	Elevation(lat, lon float64) float64
	NoDataValue() float64
}

// Resampling selects how a grid is interpolated between posts.
type Resampling int

const (
	Nearest Resampling = iota
	Bilinear
	Cubic
)

var resamplingNames = map[Resampling]string{
	Nearest:  "NEAREST_NEIGHBOUR",
	Bilinear: "BILINEAR_INTERPOLATION",
	Cubic:    "CUBIC_CONVOLUTION",
}

func (r Resampling) String() string {
	if s, ok := resamplingNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Resampling(%d)", int(r))
}

// ParseResampling accepts the full names above or the short forms
// "nearest", "bilinear" and "cubic", case-insensitively.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEAREST", "NEAREST_NEIGHBOUR", "NEAREST_NEIGHBOR":
		return Nearest, nil
	case "BILINEAR", "BILINEAR_INTERPOLATION", "":
		return Bilinear, nil
	case "CUBIC", "CUBIC_CONVOLUTION":
		return Cubic, nil
	}
	return Nearest, fmt.Errorf("unknown DEM resampling method %q", s)
}

// Constant is a DEM of fixed height inside a lat/lon box and no-data
// outside it.
type Constant struct {
	Height         float64
	NoData         float64
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Elevation implements ElevationModel.
func (c *Constant) Elevation(lat, lon float64) float64 {
	if lat < c.MinLat || lat > c.MaxLat || lon < c.MinLon || lon > c.MaxLon {
		return c.NoData
	}
	return c.Height
}

// NoDataValue implements ElevationModel.
func (c *Constant) NoDataValue() float64 { return c.NoData }
