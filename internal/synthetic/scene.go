// Package synthetic builds self-consistent SAR scenes: a circular polar
// orbit looking right, tie-point geocoding derived from the orbit on the
// ellipsoid, and a DEM with flat, ramp or hill relief.
package synthetic

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/orbit"
	"github.com/banshee-data/sarterrain/internal/product"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/units"
)

// earthGM is the WGS84 gravitational constant in m^3/s^2.
const earthGM = 3.986004418e14

// firstLineOffset is the first line time after the orbit epoch (s).
const firstLineOffset = 5.0

// demMargin pads the DEM beyond the scene footprint (degrees).
const demMargin = 0.02

// Terrain selects the DEM relief.
type Terrain int

const (
	// Flat is a constant height of Relief metres.
	Flat Terrain = iota
	// Ramp rises linearly eastward from 0 to Relief across the footprint.
	Ramp
	// Hill is a Gaussian bump of height Relief at the scene centre.
	Hill
)

func (t Terrain) String() string {
	switch t {
	case Flat:
		return "flat"
	case Ramp:
		return "ramp"
	case Hill:
		return "hill"
	}
	return "unknown"
}

// ParseTerrain resolves a terrain name.
func ParseTerrain(s string) (Terrain, error) {
	for _, t := range []Terrain{Flat, Ramp, Hill} {
		if t.String() == s {
			return t, nil
		}
	}
	return Flat, fmt.Errorf("unknown terrain %q (valid: flat, ramp, hill)", s)
}

// Config describes a synthetic acquisition.
type Config struct {
	Width, Height    int
	TieSubSampling   int
	LineTimeInterval float64 // s
	RangeSpacing     float64 // m
	NearRange        float64 // slant range of the first column, m
	Altitude         float64 // orbit height above the equatorial radius, m
	Wavelength       float64 // m
	NearRangeOnLeft  bool
	// SRGR produces a ground-range product described by SRGR polynomials.
	SRGR bool

	Terrain     Terrain
	Relief      float64 // m
	DEMCellSize float64 // degrees
	DEMNoData   float64

	Epoch   time.Time
	Mission string
	Pass    string
}

// DefaultConfig is a small C-band slant-range scene over flat terrain.
func DefaultConfig() Config {
	return Config{
		Width:            128,
		Height:           128,
		TieSubSampling:   16,
		LineTimeInterval: 0.002,
		RangeSpacing:     10,
		NearRange:        850e3,
		Altitude:         700e3,
		Wavelength:       0.0555,
		NearRangeOnLeft:  true,
		Terrain:          Flat,
		DEMCellSize:      0.0002,
		DEMNoData:        -32768,
		Epoch:            time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Mission:          "SYNTH",
		Pass:             "ASCENDING",
	}
}

func (c Config) validate() error {
	switch {
	case c.Width < 2 || c.Height < 2:
		return fmt.Errorf("synthetic: image size %dx%d too small", c.Width, c.Height)
	case c.TieSubSampling < 1:
		return errors.New("synthetic: tie sub-sampling must be positive")
	case !(c.LineTimeInterval > 0) || !(c.RangeSpacing > 0) || !(c.Wavelength > 0):
		return errors.New("synthetic: line interval, range spacing and wavelength must be positive")
	case !(c.Altitude > 0) || !(c.NearRange > c.Altitude):
		return fmt.Errorf("synthetic: near range %v must exceed altitude %v", c.NearRange, c.Altitude)
	case !(c.DEMCellSize > 0):
		return errors.New("synthetic: DEM cell size must be positive")
	}
	return nil
}

// Scene is a generated acquisition with all derived models.
type Scene struct {
	Config    Config
	Metadata  *product.Metadata
	Orbit     *orbit.Model
	Geometry  *rangedoppler.Geometry
	Geocoding *geocoding.TiePointGrid
	DEM       *dem.Grid
}

// radius and omega of the circular orbit.
func (c Config) radius() float64 { return geometry.SemiMajorAxis + c.Altitude }

func (c Config) omega() float64 {
	r := c.radius()
	return math.Sqrt(earthGM / (r * r * r))
}

// state returns the sensor position and velocity t seconds after the
// epoch. The orbit lies in the x-z plane and crosses the equator at
// longitude 0 heading north at t = 0.
func (c Config) state(t float64) (pos, vel r3.Vec) {
	r, w := c.radius(), c.omega()
	s, co := math.Sincos(w * t)
	return r3.Vec{X: r * co, Z: r * s}, r3.Vec{X: -r * w * s, Z: r * w * co}
}

// New generates a scene.
func New(cfg Config) (*Scene, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Scene{Config: cfg}

	first := firstLineOffset
	last := first + float64(cfg.Height-1)*cfg.LineTimeInterval
	n := int(math.Ceil(last+firstLineOffset)) + 1
	vectors := make([]orbit.StateVector, n)
	for i := range vectors {
		p, v := cfg.state(float64(i))
		vectors[i] = orbit.StateVector{Time: cfg.Epoch.Add(time.Duration(i) * time.Second), Position: p, Velocity: v}
	}
	model, err := orbit.NewModel(vectors, orbit.DefaultDegree)
	if err != nil {
		return nil, err
	}
	s.Orbit = model

	params := rangedoppler.Params{
		Wavelength:         cfg.Wavelength,
		RangeSpacing:       cfg.RangeSpacing,
		AzimuthSpacing:     geometry.SemiMajorAxis * cfg.omega() * cfg.LineTimeInterval,
		FirstLineTime:      first,
		LastLineTime:       last,
		LineTimeInterval:   cfg.LineTimeInterval,
		NearEdgeSlantRange: cfg.NearRange,
		NearRangeOnLeft:    cfg.NearRangeOnLeft,
		Width:              cfg.Width,
		Height:             cfg.Height,
	}
	if cfg.SRGR {
		params.NearEdgeSlantRange = 0
		params.SRGR = cfg.srgr(first, last)
	}
	s.Geometry, err = rangedoppler.NewGeometry(model, params, rangedoppler.DefaultSolverOptions())
	if err != nil {
		return nil, err
	}

	tp, err := s.tiePoints()
	if err != nil {
		return nil, err
	}
	s.Geocoding, err = geocoding.NewTiePointGrid(cfg.Width, cfg.Height, tp.Width, tp.Height,
		tp.SubSamplingX, tp.SubSamplingY, tp.Latitude, tp.Longitude)
	if err != nil {
		return nil, err
	}

	s.DEM, err = cfg.buildDEM(tp)
	if err != nil {
		return nil, err
	}
	s.Metadata = s.metadata(tp)
	return s, nil
}

// centralAngle is the earth-centre angle between nadir and a point on the
// sphere of radius a at slant range r from a sensor at orbit radius.
func (c Config) centralAngle(r float64) float64 {
	rs, a := c.radius(), geometry.SemiMajorAxis
	return math.Acos((rs*rs + a*a - r*r) / (2 * rs * a))
}

// srgr returns a quadratic slant(ground) polynomial, ground range measured
// from nadir on the sphere, expanded about the swath centre.
func (c Config) srgr(first, last float64) []rangedoppler.SRGRCoefficients {
	a, rs := geometry.SemiMajorAxis, c.radius()
	g0 := a * c.centralAngle(c.NearRange)
	gc := g0 + 0.5*float64(c.Width)*c.RangeSpacing

	gamma := gc / a
	r0 := math.Sqrt(rs*rs + a*a - 2*rs*a*math.Cos(gamma))
	r1 := rs * math.Sin(gamma) / r0
	r2 := (rs*math.Cos(gamma)/a - r1*r1) / r0

	coeffs := []float64{
		r0 - r1*gc + 0.5*r2*gc*gc,
		r1 - r2*gc,
		0.5 * r2,
	}
	return []rangedoppler.SRGRCoefficients{
		{Time: first, GroundRangeOrigin: g0, Coefficients: coeffs},
		{Time: last, GroundRangeOrigin: g0, Coefficients: append([]float64(nil), coeffs...)},
	}
}

// seed returns a spherical-earth guess of the ground point imaged at image
// pixel (x, y), on the right of the ground track.
func (s *Scene) seed(x, y float64) r3.Vec {
	t := s.Geometry.Params().AzimuthTime(y)
	sensor, vel := s.Orbit.PositionVelocity(t)
	gamma := s.Config.centralAngle(s.Geometry.PixelSlantRange(x, t))
	up := r3.Unit(sensor)
	right := r3.Unit(r3.Cross(vel, up))
	sn, cs := math.Sincos(gamma)
	return r3.Scale(geometry.SemiMajorAxis, r3.Add(r3.Scale(cs, up), r3.Scale(sn, right)))
}

// PixelToGround returns the ECEF point at height h imaged at image pixel
// (x, y).
func (s *Scene) PixelToGround(x, y, h float64) (r3.Vec, error) {
	p, ok := s.Geometry.PixelToEllipsoid(x, y, h, s.seed(x, y))
	if !ok {
		return r3.Vec{}, fmt.Errorf("synthetic: no ground point for pixel (%v, %v)", x, y)
	}
	return p, nil
}

func (s *Scene) tiePoints() (*product.TiePointGrid, error) {
	cfg := s.Config
	sub := cfg.TieSubSampling
	cols := (cfg.Width-2)/sub + 2
	rows := (cfg.Height-2)/sub + 2
	tp := &product.TiePointGrid{
		SubSamplingX: float64(sub), SubSamplingY: float64(sub),
		Width: cols, Height: rows,
		Latitude:       make([]float64, rows*cols),
		Longitude:      make([]float64, rows*cols),
		IncidenceAngle: make([]float64, rows*cols),
	}
	for i := 0; i < rows; i++ {
		y := float64(i * sub)
		sensor := s.Orbit.Position(s.Geometry.Params().AzimuthTime(y))
		for j := 0; j < cols; j++ {
			x := float64(j * sub)
			p, err := s.PixelToGround(x, y, 0)
			if err != nil {
				return nil, err
			}
			lat, lon, _ := geometry.ECEFToGeo(p)
			k := i*cols + j
			tp.Latitude[k] = lat
			tp.Longitude[k] = lon
			tp.IncidenceAngle[k] = geometry.IncidenceAngle(p, sensor)
		}
	}
	return tp, nil
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	return lo, hi
}

func (c Config) buildDEM(tp *product.TiePointGrid) (*dem.Grid, error) {
	latLo, latHi := minMax(tp.Latitude)
	lonLo, lonHi := minMax(tp.Longitude)
	west, south := lonLo-demMargin, latLo-demMargin
	cols := int(math.Ceil((lonHi+demMargin-west)/c.DEMCellSize)) + 1
	rows := int(math.Ceil((latHi+demMargin-south)/c.DEMCellSize)) + 1

	latC, lonC := 0.5*(latLo+latHi), 0.5*(lonLo+lonHi)
	sigma := (lonHi - lonLo) / 6

	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		lat := south + (float64(rows-r)-0.5)*c.DEMCellSize
		for col := 0; col < cols; col++ {
			lon := west + (float64(col)+0.5)*c.DEMCellSize
			var h float64
			switch c.Terrain {
			case Flat:
				h = c.Relief
			case Ramp:
				h = c.Relief * math.Max(0, math.Min(1, (lon-lonLo)/(lonHi-lonLo)))
			case Hill:
				d2 := (lat-latC)*(lat-latC) + (lon-lonC)*(lon-lonC)
				h = c.Relief * math.Exp(-d2/(2*sigma*sigma))
			}
			data[r*cols+col] = h
		}
	}
	g, err := dem.NewGrid(rows, cols, west, south, c.DEMCellSize, c.DEMNoData, data)
	if err != nil {
		return nil, err
	}
	g.Resampling = dem.Bilinear
	return g, nil
}

func (s *Scene) metadata(tp *product.TiePointGrid) *product.Metadata {
	cfg := s.Config
	p := s.Geometry.Params()
	m := &product.Metadata{
		ProductName:            fmt.Sprintf("SYNTH_%s_%dx%d", cfg.Terrain, cfg.Width, cfg.Height),
		Mission:                cfg.Mission,
		Pass:                   cfg.Pass,
		Width:                  cfg.Width,
		Height:                 cfg.Height,
		FirstLineTime:          s.Orbit.Time(p.FirstLineTime),
		LastLineTime:           s.Orbit.Time(p.LastLineTime),
		LineTimeInterval:       p.LineTimeInterval,
		Wavelength:             p.Wavelength,
		RangeSpacing:           p.RangeSpacing,
		AzimuthSpacing:         p.AzimuthSpacing,
		SRGRFlag:               p.IsSRGR(),
		SlantRangeToFirstPixel: p.NearEdgeSlantRange,
		TiePointGrid:           tp,
		Bands: []product.BandInfo{
			{Name: "Beta0", Unit: units.Intensity.String(), NoDataValue: 0, File: "Beta0.img"},
		},
	}
	for _, c := range p.SRGR {
		m.SRGRCoefficients = append(m.SRGRCoefficients, product.SRGRCoefficients{
			Time: s.Orbit.Time(c.Time), GroundRangeOrigin: c.GroundRangeOrigin, Coefficients: c.Coefficients,
		})
	}
	lo, hi := s.Orbit.Domain()
	for t := lo; t <= hi+1e-9; t++ {
		pos, vel := cfg.state(t)
		m.OrbitStateVectors = append(m.OrbitStateVectors, product.StateVector{
			Time: s.Orbit.Time(t),
			XPos: pos.X, YPos: pos.Y, ZPos: pos.Z,
			XVel: vel.X, YVel: vel.Y, ZVel: vel.Z,
		})
	}
	return m
}

// Beta0 returns a backscatter band of ones.
func (s *Scene) Beta0() *raster.Band {
	b := raster.NewBand("Beta0", units.Intensity, s.Config.Width, s.Config.Height, 0)
	b.Fill(1)
	return b
}
