package scheduler

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists schedule entries and firing history in SQLite.
// Uses pure-Go SQLite (modernc.org/sqlite), no cgo required.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite database at the given path.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL DEFAULT '',
			expression    TEXT NOT NULL,
			kind          TEXT NOT NULL DEFAULT 'calendar',
			enabled       INTEGER NOT NULL DEFAULT 1,
			max_runs      INTEGER NOT NULL DEFAULT 0,
			run_count     INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL DEFAULT (datetime('now')),
			last_fired_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS firings (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id      TEXT NOT NULL,
			expression    TEXT NOT NULL,
			scheduled_for TEXT NOT NULL,
			fired_at      TEXT NOT NULL,
			run_count     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS firings_entry ON firings(entry_id);
	`)
	return err
}

// Save inserts or replaces a schedule entry.
func (s *Store) Save(e *Entry) error {
	enabledInt := 0
	if e.Enabled {
		enabledInt = 1
	}
	lastFired := ""
	if e.LastFiredAt != nil {
		lastFired = e.LastFiredAt.Format(time.RFC3339Nano)
	}

	_, err := s.db.Exec(`
		INSERT INTO entries (id, title, expression, kind, enabled, max_runs, run_count, created_at, last_fired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			expression = excluded.expression,
			kind = excluded.kind,
			enabled = excluded.enabled,
			max_runs = excluded.max_runs,
			run_count = excluded.run_count,
			last_fired_at = excluded.last_fired_at
	`, e.ID, e.Title, e.Expression, e.Kind, enabledInt, e.MaxRuns, e.RunCount,
		e.CreatedAt.Format(time.RFC3339Nano), lastFired)
	return err
}

// Get retrieves an entry by ID. Returns nil when absent.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, title, expression, kind, enabled, max_runs, run_count, created_at, last_fired_at
		FROM entries WHERE id = ?
	`, id)

	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// List returns all entries, newest first.
func (s *Store) List() ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, title, expression, kind, enabled, max_runs, run_count, created_at, last_fired_at
		FROM entries ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry and its firing history.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM firings WHERE entry_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	return err
}

// RecordFiring appends one firing to the history.
func (s *Store) RecordFiring(f *Firing) error {
	_, err := s.db.Exec(`
		INSERT INTO firings (entry_id, expression, scheduled_for, fired_at, run_count)
		VALUES (?, ?, ?, ?, ?)
	`, f.EntryID, f.Expression,
		f.ScheduledFor.Format(time.RFC3339Nano), f.FiredAt.Format(time.RFC3339Nano), f.RunCount)
	return err
}

// ListFirings returns the most recent firings, newest first. An empty
// entryID matches all entries.
func (s *Store) ListFirings(entryID string, limit int) ([]*Firing, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT entry_id, expression, scheduled_for, fired_at, run_count
		FROM firings`
	args := []any{}
	if entryID != "" {
		query += ` WHERE entry_id = ?`
		args = append(args, entryID)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var firings []*Firing
	for rows.Next() {
		var f Firing
		var scheduledStr, firedStr string
		if err := rows.Scan(&f.EntryID, &f.Expression, &scheduledStr, &firedStr, &f.RunCount); err != nil {
			return nil, err
		}
		f.ScheduledFor, _ = time.Parse(time.RFC3339Nano, scheduledStr)
		f.FiredAt, _ = time.Parse(time.RFC3339Nano, firedStr)
		firings = append(firings, &f)
	}
	return firings, rows.Err()
}

func scanEntry(scan func(...any) error) (*Entry, error) {
	var e Entry
	var enabledInt int
	var createdStr, lastFiredStr string

	err := scan(&e.ID, &e.Title, &e.Expression, &e.Kind, &enabledInt,
		&e.MaxRuns, &e.RunCount, &createdStr, &lastFiredStr)
	if err != nil {
		return nil, err
	}

	e.Enabled = enabledInt != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if lastFiredStr != "" {
		t, err := time.Parse(time.RFC3339Nano, lastFiredStr)
		if err == nil {
			e.LastFiredAt = &t
		}
	}
	return &e, nil
}
