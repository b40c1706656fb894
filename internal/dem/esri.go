package dem

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// defaultASCIINoData is the Esri ASCII grid no-data value when the header
// omits NODATA_value.
const defaultASCIINoData = -9999

// LoadEsriASCII reads an Esri ASCII grid in geographic degrees. Both the
// corner and centre forms of the origin header are accepted.
func LoadEsriASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	var (
		cols, rows  int
		x, y, cell  float64
		centred     bool
		noData      = float64(defaultASCIINoData)
		seen        = map[string]bool{}
		pending     string
		havePending bool
	)

	// Header keys come in pairs; the first numeric token starts the data.
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending, havePending = key, true
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("esri ascii: missing value for %q", key)
		}
		val := sc.Text()
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("esri ascii: bad %s %q: %w", key, val, err)
		}
		seen[key] = true
		switch key {
		case "ncols":
			cols = int(f)
		case "nrows":
			rows = int(f)
		case "xllcorner":
			x = f
		case "yllcorner":
			y = f
		case "xllcenter":
			x, centred = f, true
		case "yllcenter":
			y, centred = f, true
		case "cellsize":
			cell = f
		case "nodata_value":
			noData = f
		default:
			return nil, fmt.Errorf("esri ascii: unknown header %q", key)
		}
	}
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !seen[k] {
			return nil, fmt.Errorf("esri ascii: missing header %s", k)
		}
	}
	if centred {
		x -= cell / 2
		y -= cell / 2
	}

	data := make([]float64, 0, max(rows*cols, 0))
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("esri ascii: bad value %q at index %d: %w", tok, len(data), err)
		}
		data = append(data, v)
		return nil
	}
	if havePending {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("esri ascii: %w", err)
	}
	return NewGrid(rows, cols, x, y, cell, noData, data)
}

// WriteEsriASCII writes g as an Esri ASCII grid with corner origin.
func WriteEsriASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\nxllcorner %.10g\nyllcorner %.10g\ncellsize %.10g\nNODATA_value %g\n",
		g.Cols, g.Rows, g.West, g.South, g.CellSize, g.NoData)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(g.Data[r*g.Cols+c], 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
