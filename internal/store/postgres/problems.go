// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

type problemStore struct {
	db *sqlx.DB
}

type problemRow struct {
	ID                     int64          `db:"id"`
	LastModified           time.Time      `db:"last_modified"`
	TestCases              int            `db:"test_cases"`
	TimeLimit              float64        `db:"time_limit"`
	MemoryLimit            int64          `db:"memory_limit"`
	GeneratorCode          string         `db:"generator_code"`
	GeneratorLanguage      string         `db:"generator_language"`
	GraderCode             string         `db:"grader_code"`
	GraderLanguage         string         `db:"grader_language"`
	SourceVerifierCode     sql.NullString `db:"source_verifier_code"`
	SourceVerifierLanguage sql.NullString `db:"source_verifier_language"`
}

func (r *problemRow) toModel() *model.Problem {
	p := &model.Problem{
		ID:                r.ID,
		LastModified:      r.LastModified,
		TestCases:         r.TestCases,
		TimeLimit:         r.TimeLimit,
		MemoryLimit:       r.MemoryLimit,
		GeneratorCode:     r.GeneratorCode,
		GeneratorLanguage: model.Language(r.GeneratorLanguage),
		GraderCode:        r.GraderCode,
		GraderLanguage:    model.Language(r.GraderLanguage),
	}
	if r.SourceVerifierCode.Valid {
		p.SourceVerifierCode = &r.SourceVerifierCode.String
	}
	if r.SourceVerifierLanguage.Valid {
		lang := model.Language(r.SourceVerifierLanguage.String)
		p.SourceVerifierLanguage = &lang
	}
	return p
}

const problemColumns = `id, last_modified, test_cases, time_limit, memory_limit,
	generator_code, generator_language, grader_code, grader_language,
	source_verifier_code, source_verifier_language`

func (s *problemStore) Create(ctx context.Context, p *model.Problem) error {
	var row problemRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO problems (id, last_modified, test_cases, time_limit, memory_limit,
			generator_code, generator_language, grader_code, grader_language,
			source_verifier_code, source_verifier_language)
		VALUES ($1, now(), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+problemColumns,
		p.ID, p.TestCases, p.TimeLimit, p.MemoryLimit,
		p.GeneratorCode, p.GeneratorLanguage, p.GraderCode, p.GraderLanguage,
		p.SourceVerifierCode, p.SourceVerifierLanguage)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("postgres: create problem: %w", err)
	}
	*p = *row.toModel()
	return nil
}

func (s *problemStore) Get(ctx context.Context, id int64) (*model.Problem, error) {
	var row problemRow
	err := s.db.GetContext(ctx, &row, `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get problem: %w", err)
	}
	return row.toModel(), nil
}

func (s *problemStore) List(ctx context.Context) ([]*model.Problem, error) {
	var rows []problemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+problemColumns+` FROM problems ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("postgres: list problems: %w", err)
	}
	problems := make([]*model.Problem, len(rows))
	for i := range rows {
		problems[i] = rows[i].toModel()
	}
	return problems, nil
}

func (s *problemStore) Update(ctx context.Context, id int64, patch store.ProblemPatch) (*model.Problem, error) {
	sets := []string{"last_modified = now()"}
	var args []interface{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.TestCases != nil {
		add("test_cases", *patch.TestCases)
	}
	if patch.TimeLimit != nil {
		add("time_limit", *patch.TimeLimit)
	}
	if patch.MemoryLimit != nil {
		add("memory_limit", *patch.MemoryLimit)
	}
	if patch.GeneratorCode != nil {
		add("generator_code", *patch.GeneratorCode)
	}
	if patch.GeneratorLanguage != nil {
		add("generator_language", *patch.GeneratorLanguage)
	}
	if patch.GraderCode != nil {
		add("grader_code", *patch.GraderCode)
	}
	if patch.GraderLanguage != nil {
		add("grader_language", *patch.GraderLanguage)
	}
	if patch.SourceVerifierCode != nil {
		add("source_verifier_code", *patch.SourceVerifierCode)
	}
	if patch.SourceVerifierLanguage != nil {
		add("source_verifier_language", *patch.SourceVerifierLanguage)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE problems SET %s WHERE id = $%d RETURNING %s",
		joinComma(sets), len(args), problemColumns)

	var row problemRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update problem: %w", err)
	}
	return row.toModel(), nil
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
