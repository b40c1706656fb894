// Package product reads and writes the abstracted metadata document that
// describes a SAR product: timing, spacing, orbit state vectors, tie-point
// geocoding and the band files next to it.
package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrMissingMetadata is returned when a required attribute is absent.
	ErrMissingMetadata = errors.New("product: missing metadata")
	// ErrMissingOrbit is returned when the product has too few state vectors.
	ErrMissingOrbit = errors.New("product: missing orbit state vectors")
)

// maxMetadataSize bounds the metadata file read by Load.
const maxMetadataSize = 16 * 1024 * 1024

// Metadata is the JSON metadata document of a product.
type Metadata struct {
	ProductName string `json:"product_name"`
	Mission     string `json:"mission"`
	Pass        string `json:"pass"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`

	FirstLineTime    time.Time `json:"first_line_time"`
	LastLineTime     time.Time `json:"last_line_time"`
	LineTimeInterval float64   `json:"line_time_interval"`

	RadarFrequency float64 `json:"radar_frequency,omitempty"` // MHz
	Wavelength     float64 `json:"wavelength,omitempty"`      // m
	RangeSpacing   float64 `json:"range_spacing"`
	AzimuthSpacing float64 `json:"azimuth_spacing"`

	SRGRFlag               bool               `json:"srgr_flag"`
	SlantRangeToFirstPixel float64            `json:"slant_range_to_first_pixel"`
	SRGRCoefficients       []SRGRCoefficients `json:"srgr_coefficients,omitempty"`

	OrbitStateVectors []StateVector `json:"orbit_state_vectors"`
	TiePointGrid      *TiePointGrid `json:"tie_point_grid"`
	Bands             []BandInfo    `json:"bands"`
}

// SRGRCoefficients is one slant-to-ground range polynomial.
type SRGRCoefficients struct {
	Time              time.Time `json:"time"`
	GroundRangeOrigin float64   `json:"ground_range_origin"`
	Coefficients      []float64 `json:"coefficients"`
}

// StateVector is one orbit sample in ECEF metres and metres per second.
type StateVector struct {
	Time time.Time `json:"time"`
	XPos float64   `json:"x_pos"`
	YPos float64   `json:"y_pos"`
	ZPos float64   `json:"z_pos"`
	XVel float64   `json:"x_vel"`
	YVel float64   `json:"y_vel"`
	ZVel float64   `json:"z_vel"`
}

// TiePointGrid holds row-major latitude, longitude and incidence angle tie
// points, all in degrees.
type TiePointGrid struct {
	SubSamplingX   float64   `json:"sub_sampling_x"`
	SubSamplingY   float64   `json:"sub_sampling_y"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Latitude       []float64 `json:"latitude"`
	Longitude      []float64 `json:"longitude"`
	IncidenceAngle []float64 `json:"incidence_angle,omitempty"`
}

// BandInfo names a raw float32 band file relative to the metadata file.
type BandInfo struct {
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	NoDataValue float64 `json:"no_data_value"`
	File        string  `json:"file"`
}

// Load reads and validates a metadata file.
func Load(path string) (*Metadata, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat metadata file: %w", err)
	}
	if info.Size() > maxMetadataSize {
		return nil, fmt.Errorf("metadata file too large: %d bytes (max %d)", info.Size(), maxMetadataSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes m as indented JSON.
func (m *Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Validate checks that every attribute the operators need is present.
func (m *Metadata) Validate() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingMetadata, name)
	}
	switch {
	case m.Width <= 0 || m.Height <= 0:
		return missing("width/height")
	case m.FirstLineTime.IsZero():
		return missing("first_line_time")
	case m.LastLineTime.IsZero():
		return missing("last_line_time")
	case !(m.LineTimeInterval > 0):
		return missing("line_time_interval")
	case !(m.Wavelength > 0) && !(m.RadarFrequency > 0):
		return missing("radar_frequency or wavelength")
	case !(m.RangeSpacing > 0):
		return missing("range_spacing")
	case !(m.AzimuthSpacing > 0):
		return missing("azimuth_spacing")
	case m.SRGRFlag && len(m.SRGRCoefficients) == 0:
		return missing("srgr_coefficients")
	case !m.SRGRFlag && !(m.SlantRangeToFirstPixel > 0):
		return missing("slant_range_to_first_pixel")
	case m.TiePointGrid == nil:
		return missing("tie_point_grid")
	}
	if len(m.OrbitStateVectors) < 2 {
		return fmt.Errorf("%w: have %d", ErrMissingOrbit, len(m.OrbitStateVectors))
	}
	for i, b := range m.Bands {
		if b.Name == "" || b.File == "" {
			return missing(fmt.Sprintf("bands[%d] name/file", i))
		}
	}
	return nil
}

// Band returns the band with the given name.
func (m *Metadata) Band(name string) (BandInfo, bool) {
	for _, b := range m.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return BandInfo{}, false
}

// IsRS2Descending reports the mission/pass combination imaged with near
// range on the right.
func (m *Metadata) IsRS2Descending() bool {
	return m.Mission == "RS2" && strings.Contains(strings.ToUpper(m.Pass), "DESCENDING")
}
