package monitoring

import (
	"sync"
	"time"
)

// TileStats are the per-tile counters reported by the operators.
type TileStats struct {
	Operator string
	X0, Y0   int
	Width    int
	Height   int

	Processed     int // ground posts visited
	NoDataDEM     int // posts without elevation
	NotValid      int // outside the swath
	NoConvergence int // zero-Doppler iteration cap reached
	OutOfRange    int
	Shadowed      int
	Accumulated   int // posts whose area reached the tile
	Filled        int // output cells written by gap fill

	Duration time.Duration
}

// Add accumulates the counters of o into s.
func (s *TileStats) Add(o TileStats) {
	s.Processed += o.Processed
	s.NoDataDEM += o.NoDataDEM
	s.NotValid += o.NotValid
	s.NoConvergence += o.NoConvergence
	s.OutOfRange += o.OutOfRange
	s.Shadowed += o.Shadowed
	s.Accumulated += o.Accumulated
	s.Filled += o.Filled
	s.Duration += o.Duration
}

// Sink receives tile diagnostics. Implementations must be safe for
// concurrent use since tiles finish on many goroutines.
type Sink interface {
	RecordTile(TileStats)
}

// LogSink writes one line per tile through Logf.
type LogSink struct{}

// RecordTile implements Sink.
func (LogSink) RecordTile(s TileStats) {
	Logf("%s tile (%d,%d %dx%d): processed=%d nodata=%d notvalid=%d noconv=%d outofrange=%d shadowed=%d accumulated=%d filled=%d in %v",
		s.Operator, s.X0, s.Y0, s.Width, s.Height, s.Processed, s.NoDataDEM, s.NotValid,
		s.NoConvergence, s.OutOfRange, s.Shadowed, s.Accumulated, s.Filled, s.Duration)
}

// DiscardSink drops everything.
type DiscardSink struct{}

// RecordTile implements Sink.
func (DiscardSink) RecordTile(TileStats) {}

// MemorySink keeps every record in memory.
type MemorySink struct {
	mu    sync.Mutex
	tiles []TileStats
}

// RecordTile implements Sink.
func (m *MemorySink) RecordTile(s TileStats) {
	m.mu.Lock()
	m.tiles = append(m.tiles, s)
	m.mu.Unlock()
}

// Tiles returns a copy of the recorded stats.
func (m *MemorySink) Tiles() []TileStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TileStats(nil), m.tiles...)
}

// Total sums every recorded tile.
func (m *MemorySink) Total() TileStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t TileStats
	for _, s := range m.tiles {
		t.Add(s)
	}
	return t
}

// MultiSink fans records out to several sinks.
type MultiSink []Sink

// RecordTile implements Sink.
func (ms MultiSink) RecordTile(s TileStats) {
	for _, sink := range ms {
		if sink != nil {
			sink.RecordTile(s)
		}
	}
}
