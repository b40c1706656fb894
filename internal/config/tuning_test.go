package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarterrain/internal/dem"
)

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "SRTM 3Sec", cfg.GetDEMName())
	assert.Equal(t, dem.Bilinear, cfg.GetDEMResampling())
	assert.Equal(t, 3, cfg.GetPolyDegree())
	assert.Equal(t, 1e-8, cfg.GetDopplerTolerance())
	assert.Equal(t, 20, cfg.GetMaxIterations())
	assert.Equal(t, 16, cfg.GetBracketSamples())
	assert.True(t, cfg.GetLightTimeCorrection())
	assert.False(t, cfg.GetSRGRInterpolate())
	assert.Equal(t, 256, cfg.GetTileSize())
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.GetWorkers())
	assert.Equal(t, 0.05, cfg.GetOverlapMargin())
	assert.Equal(t, 0.1, cfg.GetAdditionalOverlap())
	assert.Equal(t, 20, cfg.GetOverlapSampleStep())
	assert.Equal(t, 0.0, cfg.GetNoDataValue())
	assert.False(t, cfg.GetOutputSimulatedImage())
	assert.False(t, cfg.GetOrbitRefinement())
	assert.False(t, cfg.GetRegridMethod())
	assert.Equal(t, "", cfg.GetExternalDEMFile())
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyTuningConfig()

	assert.Equal(t, empty.GetDEMName(), cfg.GetDEMName())
	assert.Equal(t, empty.GetDEMResampling(), cfg.GetDEMResampling())
	assert.Equal(t, empty.GetPolyDegree(), cfg.GetPolyDegree())
	assert.Equal(t, empty.GetDopplerTolerance(), cfg.GetDopplerTolerance())
	assert.Equal(t, empty.GetMaxIterations(), cfg.GetMaxIterations())
	assert.Equal(t, empty.GetTileSize(), cfg.GetTileSize())
	assert.Equal(t, empty.GetWorkers(), cfg.GetWorkers())
	assert.Equal(t, empty.GetOverlapMargin(), cfg.GetOverlapMargin())
	assert.Equal(t, empty.GetAdditionalOverlap(), cfg.GetAdditionalOverlap())
	assert.Equal(t, empty.GetOverlapSampleStep(), cfg.GetOverlapSampleStep())
	assert.Equal(t, empty.SolverOptions(), cfg.SolverOptions())
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "dem_name": "GETASSE30",
  "dem_resampling": "cubic",
  "tile_size": 128,
  "workers": 3,
  "light_time_correction": false,
  "output_simulated_image": true
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadTuningConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "GETASSE30", cfg.GetDEMName())
	assert.Equal(t, dem.Cubic, cfg.GetDEMResampling())
	assert.Equal(t, 128, cfg.GetTileSize())
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.False(t, cfg.GetLightTimeCorrection())
	assert.True(t, cfg.GetOutputSimulatedImage())
	// Omitted fields fall back to defaults.
	assert.Equal(t, 3, cfg.GetPolyDegree())

	opts := cfg.SolverOptions()
	assert.False(t, opts.LightTimeCorrection)
	assert.Equal(t, 20, opts.MaxIterations)
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"tile_size":`, "failed to parse"},
		{"degree too high", "deg.json", `{"poly_degree": 9}`, "poly_degree"},
		{"tolerance", "tol.json", `{"doppler_tolerance": 0}`, "doppler_tolerance"},
		{"tile size", "tile.json", `{"tile_size": 4}`, "tile_size"},
		{"margin", "margin.json", `{"overlap_margin": 2}`, "overlap_margin"},
		{"resampling", "res.json", `{"dem_resampling": "lanczos"}`, "resampling"},
		{"external dem", "ext.json", `{"external_dem_file": "a.asc"}`, "external_dem_no_data"},
		{"bracket", "br.json", `{"bracket_samples": 1}`, "bracket_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := LoadTuningConfig(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}

	_, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	require.NoError(t, os.WriteFile(path, big, 0644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestPointerHelpers(t *testing.T) {
	cfg := &TuningConfig{
		DEMName:           ptrString("ACE30"),
		ExternalDEMFile:   ptrString("dem.asc"),
		ExternalDEMNoData: ptrFloat64(-32768),
		Workers:           ptrInt(2),
		RegridMethod:      ptrBool(true),
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ACE30", cfg.GetDEMName())
	assert.Equal(t, "dem.asc", cfg.GetExternalDEMFile())
	assert.Equal(t, -32768.0, cfg.GetExternalDEMNoData())
	assert.Equal(t, 2, cfg.GetWorkers())
	assert.True(t, cfg.GetRegridMethod())
}
