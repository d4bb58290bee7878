// Package store persists the set of projects already reported, so daily
// runs don't recommend the same repository twice.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const historyRetention = 30 * 24 * time.Hour

const historySchema = `
CREATE TABLE IF NOT EXISTS seen_projects (
	name    TEXT PRIMARY KEY,
	seen_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_projects_seen_at ON seen_projects(seen_at);
`

// History is a sqlite-backed seen-project set. Entries older than 30
// days are pruned on open, matching the reporting cadence.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// OpenHistory opens (and creates if needed) the history database at
// path, applying the schema and pruning expired entries.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	h := &History{db: db, now: time.Now}
	if err := h.prune(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Seen reports whether name was recorded within the retention window.
func (h *History) Seen(name string) (bool, error) {
	var n int
	err := h.db.QueryRow(`SELECT COUNT(1) FROM seen_projects WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history lookup: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records names with the current timestamp. Re-marking an
// existing name refreshes its timestamp.
func (h *History) MarkSeen(names []string) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("history begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO seen_projects(name, seen_at) VALUES(?, ?)
		ON CONFLICT(name) DO UPDATE SET seen_at = excluded.seen_at`)
	if err != nil {
		return fmt.Errorf("history prepare: %w", err)
	}
	defer stmt.Close()

	now := h.now().Unix()
	for _, name := range names {
		if _, err := stmt.Exec(name, now); err != nil {
			return fmt.Errorf("history insert %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) prune() error {
	cutoff := h.now().Add(-historyRetention).Unix()
	if _, err := h.db.Exec(`DELETE FROM seen_projects WHERE seen_at < ?`, cutoff); err != nil {
		return fmt.Errorf("history prune: %w", err)
	}
	return nil
}
