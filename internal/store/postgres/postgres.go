// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements internal/store against PostgreSQL using pgx's
// database/sql driver and sqlx for ergonomic struct scanning.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/easyctf/judge-coordinator/internal/store"
)

// Open connects to dsn through pgx's database/sql driver and wraps the
// resulting *sql.DB in sqlx.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return sqlx.NewDb(db, "pgx"), nil
}

// Store is the postgres-backed implementation of store.Store.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open sqlx connection (or a go-sqlmock-backed one in
// tests) as a Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Problems() store.ProblemStore       { return &problemStore{db: s.db} }
func (s *Store) Submissions() store.SubmissionStore { return &submissionStore{db: s.db} }
func (s *Store) Jobs() store.JobStore               { return &jobStore{db: s.db} }
func (s *Store) APIKeys() store.APIKeyStore         { return &apiKeyStore{db: s.db} }
