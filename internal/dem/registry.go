package dem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/sarterrain/internal/monitoring"
)

var (
	// ErrUnsupportedDEM is returned for a DEM name not in the registry.
	ErrUnsupportedDEM = errors.New("dem: unsupported DEM")
	// ErrDEMNotInstalled is returned when a DEM has no tiles on disk.
	ErrDEMNotInstalled = errors.New("dem: DEM not installed")
)

// Descriptor describes an installable DEM.
type Descriptor struct {
	Name        string
	Dir         string  // directory under the DEM root
	NoData      float64 // no-data value of the tiles
	PostSpacing float64 // nominal post spacing, metres
}

var registry = map[string]Descriptor{
	"SRTM 3Sec":       {Name: "SRTM 3Sec", Dir: "SRTM3", NoData: -32768, PostSpacing: 90},
	"SRTM 1Sec HGT":   {Name: "SRTM 1Sec HGT", Dir: "SRTM1", NoData: -32768, PostSpacing: 30},
	"ASTER 1sec GDEM": {Name: "ASTER 1sec GDEM", Dir: "ASTER", NoData: -9999, PostSpacing: 30},
	"ACE30":           {Name: "ACE30", Dir: "ACE30", NoData: -500, PostSpacing: 1000},
	"GETASSE30":       {Name: "GETASSE30", Dir: "GETASSE30", NoData: -9999, PostSpacing: 1000},
}

func init() {
	// The older name for ACE30.
	registry["ACE"] = registry["ACE30"]
}

// Names returns the registered DEM names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the descriptor for name.
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedDEM, name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Open loads every Esri ASCII tile (*.asc) of the named DEM under root into
// a Mosaic.
func Open(name, root string, resampling Resampling) (*Mosaic, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, d.Dir)
	paths, err := filepath.Glob(filepath.Join(dir, "*.asc"))
	if err != nil {
		return nil, fmt.Errorf("list DEM tiles in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s has no tiles in %s", ErrDEMNotInstalled, name, dir)
	}
	sort.Strings(paths)

	m := NewMosaic(d.NoData)
	for _, p := range paths {
		g, err := loadFile(p, resampling)
		if err != nil {
			return nil, err
		}
		// Tiles written with another sentinel are read as this DEM's.
		g.NoData = remapNoData(g, d.NoData)
		m.Add(g)
	}
	monitoring.Logf("dem: opened %s with %d tiles from %s (%s)", name, m.Len(), dir, resampling)
	return m, nil
}

// OpenExternal loads a single user-supplied Esri ASCII grid. noData
// overrides the file's own no-data value.
func OpenExternal(path string, noData float64, resampling Resampling) (*Grid, error) {
	g, err := loadFile(path, resampling)
	if err != nil {
		return nil, err
	}
	g.NoData = remapNoData(g, noData)
	monitoring.Logf("dem: opened external DEM %s (%dx%d, %s)", path, g.Cols, g.Rows, resampling)
	return g, nil
}

func loadFile(path string, resampling Resampling) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDEMNotInstalled, path)
		}
		return nil, fmt.Errorf("open DEM tile: %w", err)
	}
	defer f.Close()

	g, err := LoadEsriASCII(f)
	if err != nil {
		return nil, fmt.Errorf("load DEM tile %s: %w", path, err)
	}
	g.Resampling = resampling
	return g, nil
}

// remapNoData rewrites g's no-data posts to noData and returns noData.
func remapNoData(g *Grid, noData float64) float64 {
	if g.NoData == noData {
		return noData
	}
	for i, v := range g.Data {
		if v == g.NoData {
			g.Data[i] = noData
		}
	}
	return noData
}
