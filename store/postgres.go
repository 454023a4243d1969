package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Postgres-backed DocumentStore. The conditional write is a
// single UPDATE guarded by the version column, so the database's row-level
// atomicity carries the compare-and-swap.
//
// Expected schema:
//
//	CREATE TABLE documents (
//	    id      TEXT PRIMARY KEY,
//	    version BIGINT NOT NULL,
//	    fields  JSONB NOT NULL
//	);
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore builds a PostgresStore over pool. An empty table name
// defaults to "documents".
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = "documents"
	}
	return &PostgresStore{pool: pool, table: table}
}

// Get implements DocumentStore.
func (s *PostgresStore) Get(ctx context.Context, id string) (Document, error) {
	var (
		version int64
		body    []byte
	)
	query := fmt.Sprintf(`SELECT version, fields FROM %s WHERE id = $1`, s.table)
	err := s.pool.QueryRow(ctx, query, id).Scan(&version, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return Document{}, fmt.Errorf("store: corrupt document body for %q: %w", id, err)
	}
	return Document{ID: id, Version: version, Fields: fields}, nil
}

// Put implements DocumentStore. A zero-row update means either the document
// is missing or the version moved; a follow-up existence check separates the
// two without weakening atomicity (the UPDATE itself remains the only write).
func (s *PostgresStore) Put(ctx context.Context, id string, expectedVersion int64, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	var newVersion int64
	query := fmt.Sprintf(
		`UPDATE %s SET version = version + 1, fields = $3 WHERE id = $1 AND version = $2 RETURNING version`,
		s.table,
	)
	err = s.pool.QueryRow(ctx, query, id, expectedVersion, body).Scan(&newVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		exists := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, s.table)
		var one int
		switch checkErr := s.pool.QueryRow(ctx, exists, id).Scan(&one); {
		case errors.Is(checkErr, pgx.ErrNoRows):
			return 0, ErrNotFound
		case checkErr != nil:
			return 0, checkErr
		default:
			return 0, ErrVersionMismatch
		}
	}
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// Create implements DocumentStore.
func (s *PostgresStore) Create(ctx context.Context, id string, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, version, fields) VALUES ($1, 1, $2) ON CONFLICT (id) DO NOTHING`,
		s.table,
	)
	tag, err := s.pool.Exec(ctx, query, id, body)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrExists
	}
	return 1, nil
}
