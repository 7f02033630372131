// Package journal persists delivered cluster events to a local SQLite
// database for operator inspection. The protocol never reads it back.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"flock"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	sender      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	result      TEXT NOT NULL,
	payload_len INTEGER NOT NULL
)`

// Journal records delivered events. It implements flock.Recorder.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates the journal database, its directory, and the schema.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, log: slog.With("component", "journal")}, nil
}

// Record inserts one delivered event. Failures are logged, not fatal:
// the journal is observational and must never stall dispatch.
func (j *Journal) Record(e flock.Event) {
	_, err := j.db.Exec(
		`INSERT INTO events (at, kind, sender, seq, result, payload_len) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		e.Kind.String(),
		string(e.Sender.Node),
		e.Sender.Seq,
		e.JoinResult.String(),
		len(e.Payload),
	)
	if err != nil {
		j.log.Warn("journal insert failed", "err", err)
	}
}

// Count returns the number of recorded events.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal events: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
