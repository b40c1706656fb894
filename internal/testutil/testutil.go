// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic scenes and grid comparisons used
// by the operator tests.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/sarterrain/internal/raster"
	"github.com/banshee-data/sarterrain/internal/synthetic"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SmallSceneConfig is a 64x48 flat scene with tie points every 8 pixels.
func SmallSceneConfig() synthetic.Config {
	cfg := synthetic.DefaultConfig()
	cfg.Width, cfg.Height = 64, 48
	cfg.TieSubSampling = 8
	return cfg
}

// NewScene builds a synthetic scene from SmallSceneConfig after applying
// mutate, which may be nil.
func NewScene(t testing.TB, mutate func(*synthetic.Config)) *synthetic.Scene {
	t.Helper()
	cfg := SmallSceneConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := synthetic.New(cfg)
	if err != nil {
		t.Fatalf("synthetic scene: %v", err)
	}
	return s
}

// AssertBandsNear compares two bands pixel by pixel with an absolute
// tolerance. No-data pixels must match exactly.
func AssertBandsNear(t testing.TB, want, got *raster.Band, tol float64) {
	t.Helper()
	if want.Width != got.Width || want.Height != got.Height {
		t.Fatalf("band size %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	if diff := cmp.Diff(want.Data, got.Data, cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Errorf("band %q mismatch (-want +got):\n%s", want.Name, diff)
	}
}

// CountValid returns the number of pixels of b that are not no-data.
func CountValid(b *raster.Band) int {
	return len(b.Valid())
}
