// Package rundb records operator runs and their per-tile diagnostics in a
// SQLite database.
package rundb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/sarterrain/internal/monitoring"
	"github.com/banshee-data/sarterrain/internal/timeutil"
)

// DB is the run database.
type DB struct {
	*sql.DB
	// Clock stamps run start and finish times.
	Clock timeutil.Clock
}

// Open opens or creates the database at path and applies pending
// migrations. Use ":memory:" for a private in-memory database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers from concurrent tiles and
	// keeps an in-memory database alive across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	d := &DB{DB: db, Clock: timeutil.RealClock{}}
	if err := d.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("opened run database %s", path)
	return d, nil
}
