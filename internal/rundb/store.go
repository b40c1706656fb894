package rundb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sarterrain/internal/monitoring"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one operator invocation.
type Run struct {
	RunID        string          `json:"run_id"`
	Operator     string          `json:"operator"`
	Product      string          `json:"product"`
	ConfigJSON   json.RawMessage `json:"config_json,omitempty"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	StartedAtNs  int64           `json:"started_at_ns"`
	FinishedAtNs *int64          `json:"finished_at_ns,omitempty"`
}

// Duration is the wall time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAtNs == nil {
		return 0
	}
	return time.Duration(*r.FinishedAtNs - r.StartedAtNs)
}

// BandSummary holds summary statistics of one output band.
type BandSummary struct {
	Band   string  `json:"band"`
	Valid  int     `json:"valid"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// StartRun inserts a running run. cfg is stored as JSON and may be nil.
func (db *DB) StartRun(operator, product string, cfg interface{}) (*Run, error) {
	run := &Run{
		RunID:       uuid.New().String(),
		Operator:    operator,
		Product:     product,
		Status:      StatusRunning,
		StartedAtNs: db.Clock.Now().UnixNano(),
	}
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal run config: %w", err)
		}
		run.ConfigJSON = b
	}

	_, err := db.Exec(`
		INSERT INTO runs (run_id, operator, product, config_json, status, started_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Operator, run.Product, nullString(string(run.ConfigJSON)), run.Status, run.StartedAtNs)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run complete, or failed when runErr is not nil.
func (db *DB) FinishRun(runID string, runErr error) error {
	status, msg := StatusComplete, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at_ns = ? WHERE run_id = ?
	`, status, nullString(msg), db.Clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `run_id, operator, product, config_json, status, error, started_at_ns, finished_at_ns`

func scanRun(row interface{ Scan(...interface{}) error }) (*Run, error) {
	var (
		r        Run
		cfg, msg sql.NullString
		finished sql.NullInt64
	)
	if err := row.Scan(&r.RunID, &r.Operator, &r.Product, &cfg, &r.Status, &msg, &r.StartedAtNs, &finished); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.Error = msg.String
	if finished.Valid {
		v := finished.Int64
		r.FinishedAtNs = &v
	}
	return &r, nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(runID string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertTile stores the diagnostics of one tile.
func (db *DB) InsertTile(runID string, s monitoring.TileStats) error {
	_, err := db.Exec(`
		INSERT INTO tiles (
			run_id, operator, x0, y0, width, height,
			processed, no_data_dem, not_valid, no_convergence, out_of_range,
			shadowed, accumulated, filled, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, s.Operator, s.X0, s.Y0, s.Width, s.Height,
		s.Processed, s.NoDataDEM, s.NotValid, s.NoConvergence, s.OutOfRange,
		s.Shadowed, s.Accumulated, s.Filled, s.Duration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("insert tile: %w", err)
	}
	return nil
}

// ListTiles returns the tile diagnostics of a run in image order.
func (db *DB) ListTiles(runID string) ([]monitoring.TileStats, error) {
	rows, err := db.Query(`
		SELECT operator, x0, y0, width, height,
		       processed, no_data_dem, not_valid, no_convergence, out_of_range,
		       shadowed, accumulated, filled, duration_ns
		FROM tiles WHERE run_id = ? ORDER BY y0, x0
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}
	defer rows.Close()

	var out []monitoring.TileStats
	for rows.Next() {
		var s monitoring.TileStats
		var ns int64
		if err := rows.Scan(&s.Operator, &s.X0, &s.Y0, &s.Width, &s.Height,
			&s.Processed, &s.NoDataDEM, &s.NotValid, &s.NoConvergence, &s.OutOfRange,
			&s.Shadowed, &s.Accumulated, &s.Filled, &ns); err != nil {
			return nil, fmt.Errorf("scan tile: %w", err)
		}
		s.Duration = time.Duration(ns)
		out = append(out, s)
	}
	return out, rows.Err()
}

// RunTotals sums the tile diagnostics of a run.
func (db *DB) RunTotals(runID string) (monitoring.TileStats, error) {
	var s monitoring.TileStats
	var ns int64
	err := db.QueryRow(`
		SELECT COALESCE(SUM(processed), 0), COALESCE(SUM(no_data_dem), 0),
		       COALESCE(SUM(not_valid), 0), COALESCE(SUM(no_convergence), 0),
		       COALESCE(SUM(out_of_range), 0), COALESCE(SUM(shadowed), 0),
		       COALESCE(SUM(accumulated), 0), COALESCE(SUM(filled), 0),
		       COALESCE(SUM(duration_ns), 0)
		FROM tiles WHERE run_id = ?
	`, runID).Scan(&s.Processed, &s.NoDataDEM, &s.NotValid, &s.NoConvergence,
		&s.OutOfRange, &s.Shadowed, &s.Accumulated, &s.Filled, &ns)
	if err != nil {
		return s, fmt.Errorf("run totals: %w", err)
	}
	s.Duration = time.Duration(ns)
	return s, nil
}

// SaveBandSummary stores or replaces the summary of one band of a run.
func (db *DB) SaveBandSummary(runID string, b BandSummary) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO band_summaries (run_id, band, valid, min, max, mean, std_dev)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, b.Band, b.Valid, b.Min, b.Max, b.Mean, b.StdDev)
	if err != nil {
		return fmt.Errorf("save band summary: %w", err)
	}
	return nil
}

// ListBandSummaries returns the band summaries of a run by band name.
func (db *DB) ListBandSummaries(runID string) ([]BandSummary, error) {
	rows, err := db.Query(`
		SELECT band, valid, min, max, mean, std_dev
		FROM band_summaries WHERE run_id = ? ORDER BY band
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list band summaries: %w", err)
	}
	defer rows.Close()

	var out []BandSummary
	for rows.Next() {
		var b BandSummary
		if err := rows.Scan(&b.Band, &b.Valid, &b.Min, &b.Max, &b.Mean, &b.StdDev); err != nil {
			return nil, fmt.Errorf("scan band summary: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TileSink records tiles of one run. It implements monitoring.Sink and
// keeps the first write error for Err, since RecordTile cannot return it.
type TileSink struct {
	db    *DB
	runID string

	mu  sync.Mutex
	err error
}

// Sink returns a monitoring.Sink writing into runID.
func (db *DB) Sink(runID string) *TileSink {
	return &TileSink{db: db, runID: runID}
}

func (s *TileSink) RecordTile(st monitoring.TileStats) {
	err := s.db.InsertTile(s.runID, st)
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
		monitoring.Logf("run %s: %v", s.runID, err)
	}
}

// Err returns the first error seen by RecordTile.
func (s *TileSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
