package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ReadFloat32 reads width*height little-endian float32 samples from r.
func ReadFloat32(r io.Reader, b *Band) error {
	buf := make([]float32, b.Width)
	br := bufio.NewReader(r)
	for y := 0; y < b.Height; y++ {
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			return fmt.Errorf("read %s row %d: %w", b.Name, y, err)
		}
		row := b.Row(y)
		for x, v := range buf {
			row[x] = float64(v)
		}
	}
	return nil
}

// WriteFloat32 writes b to w as little-endian float32 samples.
func WriteFloat32(w io.Writer, b *Band) error {
	bw := bufio.NewWriter(w)
	buf := make([]float32, b.Width)
	for y := 0; y < b.Height; y++ {
		for x, v := range b.Row(y) {
			buf[x] = float32(v)
		}
		if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
			return fmt.Errorf("write %s row %d: %w", b.Name, y, err)
		}
	}
	return bw.Flush()
}

// LoadFile reads a raw float32 band file into b.
func LoadFile(path string, b *Band) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to open band file: %w", err)
	}
	defer f.Close()
	if err := ReadFloat32(f, b); err != nil {
		return err
	}
	return nil
}

// SaveFile writes b to path as raw float32.
func SaveFile(path string, b *Band) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create band file: %w", err)
	}
	if err := WriteFloat32(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Float32NoData rounds a no-data value through float32 so comparisons hold
// after a band has been stored and reloaded.
func Float32NoData(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return float64(float32(v))
}
