package synthetic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/sarterrain/internal/dem"
)

// File names written by WriteProduct.
const (
	MetadataFile = "metadata.json"
	DEMFile      = "dem.asc"
)

// WriteProduct writes the metadata document, the Beta0 band and the DEM as
// Esri ASCII into dir, creating it if needed.
func (s *Scene) WriteProduct(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create product directory: %w", err)
	}
	if err := s.Metadata.SaveBand(dir, s.Beta0()); err != nil {
		return err
	}
	if err := s.Metadata.Save(filepath.Join(dir, MetadataFile)); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, DEMFile))
	if err != nil {
		return fmt.Errorf("failed to create DEM file: %w", err)
	}
	if err := dem.WriteEsriASCII(f, s.DEM); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
