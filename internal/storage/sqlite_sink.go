package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const eventsDDL = `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL DEFAULT '',
  timestamp TEXT NOT NULL,
  event_type TEXT NOT NULL,
  details TEXT NOT NULL
)`

// SQLiteSink appends records to the events table of a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	closed bool
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// events table exists. Any failure is returned as *InitError.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &InitError{Sink: "sqlite", Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &InitError{Sink: "sqlite", Err: err}
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	steps := []struct{ name, stmt string }{
		{"enable WAL", "PRAGMA journal_mode=WAL"},
		{"set busy timeout", "PRAGMA busy_timeout=5000"},
		{"create events table", eventsDDL},
	}
	for _, st := range steps {
		if _, err := db.Exec(st.stmt); err != nil {
			_ = db.Close()
			return nil, &InitError{Sink: "sqlite", Err: fmt.Errorf("%s: %w", st.name, err)}
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &InitError{Sink: "sqlite", Err: err}
	}
	return &SQLiteSink{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteSink) Path() string { return s.path }

// WriteEvent inserts a single record.
func (s *SQLiteSink) WriteEvent(ctx context.Context, rec Record) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, timestamp, event_type, details) VALUES (?, ?, ?, ?)",
		rec.RunID, ts.UTC().Format(time.RFC3339Nano), rec.EventType, rec.Details)
	return err
}

// Recent returns up to n of the most recently inserted records, oldest first.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, timestamp, event_type, details FROM
		   (SELECT * FROM events ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			ts  string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &ts, &rec.EventType, &rec.Details); err != nil {
			return nil, err
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", rec.ID, ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// Close closes the database. It is safe to call more than once.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
