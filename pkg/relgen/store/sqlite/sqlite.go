package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// single writer
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	text TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_parent ON rules(parent_id);
CREATE INDEX IF NOT EXISTS idx_rules_action ON rules(action);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRule inserts or replaces a rule record
func (s *sqliteStore) SaveRule(ctx context.Context, r store.Record) error {
	if r.ID == "" {
		return fmt.Errorf("%w: record without id", internalerr.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rules(id, parent_id, action, text, kind, created_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	parent_id = excluded.parent_id,
	action = excluded.action,
	text = excluded.text,
	kind = excluded.kind,
	created_at = excluded.created_at;
`, r.ID, r.ParentID, r.Action, r.Text, string(r.Kind), r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// GetRule retrieves a rule record by ID
func (s *sqliteStore) GetRule(ctx context.Context, id string) (store.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, parent_id, action, text, kind, created_at
FROM rules
WHERE id = ?;
`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	return r, true, nil
}

// Children retrieves the rules derived from parentID, oldest first
func (s *sqliteStore) Children(ctx context.Context, parentID string) ([]store.Record, error) {
	return s.query(ctx, `
SELECT id, parent_id, action, text, kind, created_at
FROM rules
WHERE parent_id = ?
ORDER BY id;
`, parentID)
}

// ByAction retrieves every rule for an action, oldest first
func (s *sqliteStore) ByAction(ctx context.Context, action string) ([]store.Record, error) {
	return s.query(ctx, `
SELECT id, parent_id, action, text, kind, created_at
FROM rules
WHERE action = ?
ORDER BY id;
`, action)
}

func (s *sqliteStore) query(ctx context.Context, query string, args ...interface{}) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (store.Record, error) {
	var r store.Record
	var kind, created string
	if err := sc.Scan(&r.ID, &r.ParentID, &r.Action, &r.Text, &kind, &created); err != nil {
		return store.Record{}, err
	}
	r.Kind = store.Kind(kind)
	if created != "" {
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return store.Record{}, fmt.Errorf("rule %s created_at: %w", r.ID, err)
		}
		r.CreatedAt = t
	}
	return r, nil
}
