package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/polaris-gw/polaris/pkg/dispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at INTEGER NOT NULL,
	dialect     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	status      INTEGER NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	credential  TEXT NOT NULL,
	stream      INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_usage_events_recorded_at ON usage_events(recorded_at);
`

// SQLiteStore persists usage events to a SQLite database. The driver is
// pure Go, so edge builds stay cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the usage database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// WAL keeps concurrent readers off the writer's back.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure usage database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert stores one event.
func (s *SQLiteStore) Insert(ctx context.Context, e dispatch.UsageEvent, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (recorded_at, dialect, source, status, elapsed_ms, credential, stream, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		at.Unix(), string(e.Dialect), e.Source, e.Status, e.Elapsed.Milliseconds(), e.Credential, boolToInt(e.Stream), e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}
	return nil
}

// Prune deletes events recorded before the cutoff and returns the number
// removed. Intended to run on a schedule.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_events WHERE recorded_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned usage events: %w", err)
	}
	return n, nil
}

// Count returns the number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
