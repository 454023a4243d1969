package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free sqlite driver
)

// SQLiteStore is a SQLite-backed DocumentStore for single-host and local
// development deployments. Same conditional-UPDATE discipline as Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) a SQLite document store at
// path. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
	    id      TEXT PRIMARY KEY,
	    version INTEGER NOT NULL,
	    fields  TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements DocumentStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Document, error) {
	var (
		version int64
		body    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, fields FROM documents WHERE id = ?`, id,
	).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Document{}, fmt.Errorf("store: corrupt document body for %q: %w", id, err)
	}
	return Document{ID: id, Version: version, Fields: fields}, nil
}

// Put implements DocumentStore.
func (s *SQLiteStore) Put(ctx context.Context, id string, expectedVersion int64, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET version = version + 1, fields = ? WHERE id = ? AND version = ?`,
		string(body), id, expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var one int
		switch checkErr := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one); {
		case errors.Is(checkErr, sql.ErrNoRows):
			return 0, ErrNotFound
		case checkErr != nil:
			return 0, checkErr
		default:
			return 0, ErrVersionMismatch
		}
	}
	return expectedVersion + 1, nil
}

// Create implements DocumentStore.
func (s *SQLiteStore) Create(ctx context.Context, id string, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (id, version, fields) VALUES (?, 1, ?)`,
		id, string(body),
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrExists
	}
	return 1, nil
}
