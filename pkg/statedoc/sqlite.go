package statedoc

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaVersion = 1

// defaultPhysicalIndex is the physical index the write alias points at in a
// freshly initialized store. Rollover re-targets the alias at a new index
// without touching documents already written.
const defaultPhysicalIndex = "state-000001"

// SQLiteStore implements Backend on a local SQLite (or libsql) database.
//
// Layout:
//   - state_docs: one row per (physical index, doc id), body replaced on upsert
//   - state_aliases: alias -> physical index
//   - state_meta: schema version
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database described by cfg and ensures the schema and
// the default write alias exist.
func OpenSQLite(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO state_meta (id, schema_version, created_at) VALUES (1, ?, ?);`,
		`CREATE TABLE IF NOT EXISTS state_docs (
			index_name TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			body BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (index_name, doc_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_state_docs_doc_id ON state_docs(doc_id);`,
		`CREATE TABLE IF NOT EXISTS state_aliases (
			alias TEXT PRIMARY KEY,
			index_name TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO state_aliases (alias, index_name) VALUES (?, ?);`,
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, stmt := range stmts {
		var err error
		switch i {
		case 1:
			_, err = s.db.ExecContext(ctx, stmt, schemaVersion, now)
		case 5:
			_, err = s.db.ExecContext(ctx, stmt, WriteAlias, defaultPhysicalIndex)
		default:
			_, err = s.db.ExecContext(ctx, stmt)
		}
		if err != nil {
			return fmt.Errorf("init state schema: %w", err)
		}
	}
	return nil
}

// SearchStateDoc looks for a document across all physical indices.
//
// Returns (nil, nil) when no index holds the document. When more than one
// index holds it (which the locate-then-write protocol prevents for writers
// going through this store), the lexically first index wins so the result
// is deterministic.
func (s *SQLiteStore) SearchStateDoc(ctx context.Context, docID string) (*Hit, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var hit Hit
	err := s.db.QueryRowContext(ctx,
		`SELECT index_name, doc_id, body FROM state_docs
		 WHERE doc_id = ? ORDER BY index_name LIMIT 1`, docID).
		Scan(&hit.Index, &hit.ID, &hit.Body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("search state doc %s: %w", docID, err)
	}
	return &hit, nil
}

// IndexStateDoc upserts a document into the physical index resolved from
// target. A target naming a known alias resolves through the alias table;
// anything else is taken as a physical index name.
func (s *SQLiteStore) IndexStateDoc(ctx context.Context, target, docID string, body []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}

	index, err := s.resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO state_docs (index_name, doc_id, body, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(index_name, doc_id) DO UPDATE SET
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		index, docID, body, now)
	if err != nil {
		return fmt.Errorf("index state doc %s into %s: %w", docID, index, err)
	}
	return nil
}

func (s *SQLiteStore) resolveTarget(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: empty target", ErrUnknownLocation)
	}

	var index string
	err := s.db.QueryRowContext(ctx,
		`SELECT index_name FROM state_aliases WHERE alias = ?`, target).Scan(&index)
	if err == nil {
		return index, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve alias %s: %w", target, err)
	}
	return target, nil
}

// RolloverWriteAlias re-points the write alias at a new physical index.
// Existing documents stay where they are; only future alias writes move.
func (s *SQLiteStore) RolloverWriteAlias(ctx context.Context, newIndex string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if newIndex == "" {
		return fmt.Errorf("%w: empty index", ErrUnknownLocation)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_aliases (alias, index_name) VALUES (?, ?)
		 ON CONFLICT(alias) DO UPDATE SET index_name = excluded.index_name`,
		WriteAlias, newIndex)
	if err != nil {
		return fmt.Errorf("rollover write alias to %s: %w", newIndex, err)
	}
	return nil
}

// CheckHealth reports whether the database answers a trivial query. Wired
// into the serve surface's health checks.
func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
