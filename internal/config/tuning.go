package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/sarterrain/internal/dem"
	"github.com/banshee-data/sarterrain/internal/orbit"
	"github.com/banshee-data/sarterrain/internal/rangedoppler"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the processing parameters shared by the flatten
// and georef operators. Every field is optional; the Get* methods supply
// defaults for omitted values.
type TuningConfig struct {
	// DEM params
	DEMName           *string  `json:"dem_name,omitempty"`
	DEMResampling     *string  `json:"dem_resampling,omitempty"` // nearest, bilinear, cubic
	DEMRoot           *string  `json:"dem_root,omitempty"`
	ExternalDEMFile   *string  `json:"external_dem_file,omitempty"`
	ExternalDEMNoData *float64 `json:"external_dem_no_data,omitempty"`

	// Geometry params
	PolyDegree          *int     `json:"poly_degree,omitempty"`
	DopplerTolerance    *float64 `json:"doppler_tolerance,omitempty"`
	MaxIterations       *int     `json:"max_iterations,omitempty"`
	BracketSamples      *int     `json:"bracket_samples,omitempty"`
	LightTimeCorrection *bool    `json:"light_time_correction,omitempty"`
	SRGRInterpolate     *bool    `json:"srgr_interpolate,omitempty"`

	// Tiling params
	TileSize          *int     `json:"tile_size,omitempty"`
	Workers           *int     `json:"workers,omitempty"`
	OverlapMargin     *float64 `json:"overlap_margin,omitempty"`
	AdditionalOverlap *float64 `json:"additional_overlap,omitempty"`
	OverlapSampleStep *int     `json:"overlap_sample_step,omitempty"`

	// Output params
	NoDataValue          *float64 `json:"no_data_value,omitempty"`
	OutputSimulatedImage *bool    `json:"output_simulated_image,omitempty"`
	OrbitRefinement      *bool    `json:"orbit_refinement,omitempty"`
	RegridMethod         *bool    `json:"regrid_method,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DEMResampling != nil && *c.DEMResampling != "" {
		if _, err := dem.ParseResampling(*c.DEMResampling); err != nil {
			return err
		}
	}

	if c.PolyDegree != nil {
		if *c.PolyDegree < orbit.MinDegree || *c.PolyDegree > orbit.MaxDegree {
			return fmt.Errorf("poly_degree must be between %d and %d, got %d", orbit.MinDegree, orbit.MaxDegree, *c.PolyDegree)
		}
	}

	if c.DopplerTolerance != nil && !(*c.DopplerTolerance > 0 && *c.DopplerTolerance < 1) {
		return fmt.Errorf("doppler_tolerance must be in (0, 1), got %g", *c.DopplerTolerance)
	}

	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}

	if c.BracketSamples != nil && *c.BracketSamples < 2 {
		return fmt.Errorf("bracket_samples must be at least 2, got %d", *c.BracketSamples)
	}

	if c.TileSize != nil && *c.TileSize < 8 {
		return fmt.Errorf("tile_size must be at least 8, got %d", *c.TileSize)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.OverlapMargin != nil && (*c.OverlapMargin < 0 || *c.OverlapMargin > 1) {
		return fmt.Errorf("overlap_margin must be between 0 and 1, got %f", *c.OverlapMargin)
	}

	if c.AdditionalOverlap != nil && (*c.AdditionalOverlap < 0 || *c.AdditionalOverlap > 1) {
		return fmt.Errorf("additional_overlap must be between 0 and 1, got %f", *c.AdditionalOverlap)
	}

	if c.OverlapSampleStep != nil && *c.OverlapSampleStep < 1 {
		return fmt.Errorf("overlap_sample_step must be positive, got %d", *c.OverlapSampleStep)
	}

	if c.ExternalDEMFile != nil && *c.ExternalDEMFile != "" && c.ExternalDEMNoData == nil {
		return fmt.Errorf("external_dem_no_data is required with external_dem_file")
	}

	return nil
}

// GetDEMName returns the dem_name value or the default.
func (c *TuningConfig) GetDEMName() string {
	if c.DEMName == nil || *c.DEMName == "" {
		return "SRTM 3Sec"
	}
	return *c.DEMName
}

// GetDEMResampling returns the parsed dem_resampling value or bilinear.
func (c *TuningConfig) GetDEMResampling() dem.Resampling {
	if c.DEMResampling == nil {
		return dem.Bilinear
	}
	r, err := dem.ParseResampling(*c.DEMResampling)
	if err != nil {
		return dem.Bilinear // default on parse error
	}
	return r
}

// GetDEMRoot returns the directory holding installed DEMs.
func (c *TuningConfig) GetDEMRoot() string {
	if c.DEMRoot == nil || *c.DEMRoot == "" {
		return "dem"
	}
	return *c.DEMRoot
}

// GetExternalDEMFile returns the external DEM path, empty when unset.
func (c *TuningConfig) GetExternalDEMFile() string {
	if c.ExternalDEMFile == nil {
		return ""
	}
	return *c.ExternalDEMFile
}

// GetExternalDEMNoData returns the external_dem_no_data value or the default.
func (c *TuningConfig) GetExternalDEMNoData() float64 {
	if c.ExternalDEMNoData == nil {
		return 0
	}
	return *c.ExternalDEMNoData
}

// GetPolyDegree returns the poly_degree value or the default.
func (c *TuningConfig) GetPolyDegree() int {
	if c.PolyDegree == nil {
		return orbit.DefaultDegree
	}
	return *c.PolyDegree
}

// GetDopplerTolerance returns the doppler_tolerance value or the default.
func (c *TuningConfig) GetDopplerTolerance() float64 {
	if c.DopplerTolerance == nil {
		return 1e-8
	}
	return *c.DopplerTolerance
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 20
	}
	return *c.MaxIterations
}

// GetBracketSamples returns the bracket_samples value or the default.
func (c *TuningConfig) GetBracketSamples() int {
	if c.BracketSamples == nil {
		return 16
	}
	return *c.BracketSamples
}

// GetLightTimeCorrection returns the light_time_correction value or the default.
func (c *TuningConfig) GetLightTimeCorrection() bool {
	if c.LightTimeCorrection == nil {
		return true
	}
	return *c.LightTimeCorrection
}

// GetSRGRInterpolate returns the srgr_interpolate value or the default.
func (c *TuningConfig) GetSRGRInterpolate() bool {
	if c.SRGRInterpolate == nil {
		return false
	}
	return *c.SRGRInterpolate
}

// GetTileSize returns the tile_size value or the default.
func (c *TuningConfig) GetTileSize() int {
	if c.TileSize == nil {
		return 256
	}
	return *c.TileSize
}

// GetWorkers returns the worker count. Zero means one per CPU.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetOverlapMargin returns the overlap_margin value or the default.
func (c *TuningConfig) GetOverlapMargin() float64 {
	if c.OverlapMargin == nil {
		return 0.05
	}
	return *c.OverlapMargin
}

// GetAdditionalOverlap returns the additional_overlap value or the default.
func (c *TuningConfig) GetAdditionalOverlap() float64 {
	if c.AdditionalOverlap == nil {
		return 0.1
	}
	return *c.AdditionalOverlap
}

// GetOverlapSampleStep returns the overlap_sample_step value or the default.
func (c *TuningConfig) GetOverlapSampleStep() int {
	if c.OverlapSampleStep == nil {
		return 20
	}
	return *c.OverlapSampleStep
}

// GetNoDataValue returns the no_data_value value or the default.
func (c *TuningConfig) GetNoDataValue() float64 {
	if c.NoDataValue == nil {
		return 0
	}
	return *c.NoDataValue
}

// GetOutputSimulatedImage returns the output_simulated_image value or the default.
func (c *TuningConfig) GetOutputSimulatedImage() bool {
	if c.OutputSimulatedImage == nil {
		return false
	}
	return *c.OutputSimulatedImage
}

// GetOrbitRefinement returns the orbit_refinement value or the default.
func (c *TuningConfig) GetOrbitRefinement() bool {
	if c.OrbitRefinement == nil {
		return false
	}
	return *c.OrbitRefinement
}

// GetRegridMethod returns the regrid_method value or the default.
func (c *TuningConfig) GetRegridMethod() bool {
	if c.RegridMethod == nil {
		return false
	}
	return *c.RegridMethod
}

// SolverOptions returns the zero-Doppler solver settings.
func (c *TuningConfig) SolverOptions() rangedoppler.SolverOptions {
	return rangedoppler.SolverOptions{
		Tolerance:           c.GetDopplerTolerance(),
		MaxIterations:       c.GetMaxIterations(),
		BracketSamples:      c.GetBracketSamples(),
		LightTimeCorrection: c.GetLightTimeCorrection(),
	}
}
