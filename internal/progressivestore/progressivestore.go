// Package progressivestore implements the Progressive Store: a temporary
// on-disk keyed map that accepts pipeline chunks without holding them all
// in memory, then replays them in full-path order for an ordered consumer
// such as a hierarchical formatter.
package progressivestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/samuraizer-go/internal/model"
)

const (
	filePattern = "samuraizer_results*.db"
	busyTimeout = 20 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path     TEXT PRIMARY KEY,
	parent   TEXT NOT NULL,
	filename TEXT NOT NULL,
	payload  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_parent ON entries(parent);
`

// Store is a temporary keyed store for FileEntry values, created on enter
// and deleted on exit.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates a fresh temporary database under the OS temp directory and
// prepares its schema.
func Open() (*Store, error) {
	f, err := os.CreateTemp("", filePattern)
	if err != nil {
		return nil, fmt.Errorf("create progressive store temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	// sqlite creates its own file handle via the driver; remove the
	// placeholder so the driver's first open starts from a clean file.
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("reset progressive store temp file: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open progressive store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create progressive store schema: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
}

// WriteChunk persists one pipeline chunk in a single transaction.
func (s *Store) WriteChunk(entries []model.FileEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin chunk write: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (path, parent, filename, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			parent = excluded.parent,
			filename = excluded.filename,
			payload = excluded.payload
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare chunk write: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		payload, err := json.Marshal(e.Info)
		if err != nil {
			continue
		}
		if _, err := stmt.Exec(e.Path(), e.Parent, e.Filename, string(payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("write entry %s: %w", e.Path(), err)
		}
	}

	return tx.Commit()
}

// Ordered is one row replayed from the store, with its path pre-split into
// path-separator components for hierarchical consumers.
type Ordered struct {
	Parts []string
	Entry model.FileEntry
}

// Iterate replays every stored entry in ascending full-path order, calling
// fn for each. Iteration stops at the first error fn returns.
func (s *Store) Iterate(fn func(Ordered) error) error {
	rows, err := s.db.Query(`SELECT path, parent, filename, payload FROM entries ORDER BY path ASC`)
	if err != nil {
		return fmt.Errorf("iterate progressive store: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path, parent, filename, payload string
		if err := rows.Scan(&path, &parent, &filename, &payload); err != nil {
			return fmt.Errorf("scan progressive store row: %w", err)
		}

		var info model.FileInfo
		if err := json.Unmarshal([]byte(payload), &info); err != nil {
			return fmt.Errorf("decode progressive store payload for %s: %w", path, err)
		}

		if err := fn(Ordered{
			Parts: strings.Split(path, "/"),
			Entry: model.FileEntry{Parent: parent, Filename: filename, Info: info},
		}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database connection and deletes the temp file (and its
// WAL/SHM siblings, if any), even when called after an earlier error.
func (s *Store) Close() error {
	var closeErr error
	if s.db != nil {
		closeErr = s.db.Close()
	}
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(s.path + suffix)
	}
	return closeErr
}
