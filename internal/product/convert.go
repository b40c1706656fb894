package product

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sarterrain/internal/geocoding"
	"github.com/banshee-data/sarterrain/internal/geometry"
	"github.com/banshee-data/sarterrain/internal/orbit"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/security"
	"github.com/banshee-data/sarterrain/internal/units"
)

// WavelengthMetres returns the radar wavelength, derived from the radar
// frequency when the wavelength itself is not given.
func (m *Metadata) WavelengthMetres() float64 {
	if m.Wavelength > 0 {
		return m.Wavelength
	}
	return geometry.LightSpeed / (m.RadarFrequency * 1e6)
}

// StateVectors converts the orbit samples.
func (m *Metadata) StateVectors() []orbit.StateVector {
	out := make([]orbit.StateVector, len(m.OrbitStateVectors))
	for i, v := range m.OrbitStateVectors {
		out[i] = orbit.StateVector{
			Time:     v.Time,
			Position: r3.Vec{X: v.XPos, Y: v.YPos, Z: v.ZPos},
			Velocity: r3.Vec{X: v.XVel, Y: v.YVel, Z: v.ZVel},
		}
	}
	return out
}

// Orbit fits an orbit model of the given degree to the state vectors.
func (m *Metadata) Orbit(degree int) (*orbit.Model, error) {
	model, err := orbit.NewModel(m.StateVectors(), degree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingOrbit, err)
	}
	return model, nil
}

// NearRangeOnLeft decides the range direction of the image. Incidence
// angle tie points decide it when present: near range is on the left when
// the first column's incidence does not exceed the last column's.
// Otherwise only RADARSAT-2 descending passes are taken as right-facing.
func (m *Metadata) NearRangeOnLeft() bool {
	tp := m.TiePointGrid
	if tp != nil && tp.Width >= 2 && len(tp.IncidenceAngle) >= tp.Width {
		return tp.IncidenceAngle[0] <= tp.IncidenceAngle[tp.Width-1]
	}
	return !m.IsRS2Descending()
}

// Params builds the range-Doppler parameters with times on model's clock.
func (m *Metadata) Params(model *orbit.Model, srgrInterpolate bool) rangedoppler.Params {
	p := rangedoppler.Params{
		Wavelength:         m.WavelengthMetres(),
		RangeSpacing:       m.RangeSpacing,
		AzimuthSpacing:     m.AzimuthSpacing,
		FirstLineTime:      model.Seconds(m.FirstLineTime),
		LastLineTime:       model.Seconds(m.LastLineTime),
		LineTimeInterval:   m.LineTimeInterval,
		NearEdgeSlantRange: m.SlantRangeToFirstPixel,
		SRGRInterpolate:    srgrInterpolate,
		NearRangeOnLeft:    m.NearRangeOnLeft(),
		Width:              m.Width,
		Height:             m.Height,
	}
	if m.SRGRFlag {
		for _, c := range m.SRGRCoefficients {
			p.SRGR = append(p.SRGR, rangedoppler.SRGRCoefficients{
				Time:              model.Seconds(c.Time),
				GroundRangeOrigin: c.GroundRangeOrigin,
				Coefficients:      append([]float64(nil), c.Coefficients...),
			})
		}
	}
	return p
}

// Geometry fits the orbit and returns the validated range-Doppler geometry.
func (m *Metadata) Geometry(degree int, srgrInterpolate bool, opts rangedoppler.SolverOptions) (*rangedoppler.Geometry, error) {
	model, err := m.Orbit(degree)
	if err != nil {
		return nil, err
	}
	return rangedoppler.NewGeometry(model, m.Params(model, srgrInterpolate), opts)
}

// Geocoding builds the tie-point geocoding.
func (m *Metadata) Geocoding() (*geocoding.TiePointGrid, error) {
	tp := m.TiePointGrid
	if tp == nil {
		return nil, fmt.Errorf("%w: tie_point_grid", ErrMissingMetadata)
	}
	return geocoding.NewTiePointGrid(m.Width, m.Height, tp.Width, tp.Height,
		tp.SubSamplingX, tp.SubSamplingY, tp.Latitude, tp.Longitude)
}

// LoadBand reads band info from the file named in the metadata, relative
// to dir. The file must lie inside dir.
func (m *Metadata) LoadBand(dir string, info BandInfo) (*raster.Band, error) {
	unit, err := units.Parse(info.Unit)
	if err != nil {
		return nil, fmt.Errorf("band %q: %w", info.Name, err)
	}
	path, err := security.ResolveWithin(dir, info.File)
	if err != nil {
		return nil, fmt.Errorf("band %q: %w", info.Name, err)
	}
	b := raster.NewBand(info.Name, unit, m.Width, m.Height, info.NoDataValue)
	if err := raster.LoadFile(path, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveBand writes b under dir and records it in the band list, replacing
// any band of the same name.
func (m *Metadata) SaveBand(dir string, b *raster.Band) error {
	info := BandInfo{Name: b.Name, Unit: b.Unit.String(), NoDataValue: b.NoData, File: security.SanitizeFilename(b.Name) + ".img"}
	if err := raster.SaveFile(filepath.Join(dir, info.File), b); err != nil {
		return err
	}
	for i := range m.Bands {
		if m.Bands[i].Name == b.Name {
			m.Bands[i] = info
			return nil
		}
	}
	m.Bands = append(m.Bands, info)
	return nil
}
