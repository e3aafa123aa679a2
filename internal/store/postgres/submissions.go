// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

type submissionStore struct {
	db *sqlx.DB
}

type submissionRow struct {
	ID        int64         `db:"id"`
	UID       sql.NullInt64 `db:"uid"`
	GID       sql.NullInt64 `db:"gid"`
	Time      time.Time     `db:"time"`
	ProblemID int64         `db:"problem_id"`
	Code      string        `db:"code"`
	Language  string        `db:"language"`
}

func (r *submissionRow) toModel() *model.Submission {
	s := &model.Submission{
		ID:        r.ID,
		Time:      r.Time,
		ProblemID: r.ProblemID,
		Code:      r.Code,
		Language:  model.Language(r.Language),
	}
	if r.UID.Valid {
		s.UID = &r.UID.Int64
	}
	if r.GID.Valid {
		s.GID = &r.GID.Int64
	}
	return s
}

const submissionColumns = `id, uid, gid, time, problem_id, code, language`

func (s *submissionStore) CreateWithNewJob(ctx context.Context, sub *model.Submission, callbackURL *string) (*model.Submission, *model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create submission: begin tx: %w", err)
	}
	defer tx.Rollback()

	var subRow submissionRow
	err = tx.GetContext(ctx, &subRow, `
		INSERT INTO submissions (uid, gid, time, problem_id, code, language)
		VALUES ($1, $2, now(), $3, $4, $5)
		RETURNING `+submissionColumns,
		sub.UID, sub.GID, sub.ProblemID, sub.Code, sub.Language)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create submission: insert submission: %w", err)
	}

	var jobRow jobRow
	err = tx.GetContext(ctx, &jobRow, `
		INSERT INTO jobs (submission_id, creation_time, status, callback_url)
		VALUES ($1, now(), $2, $3)
		RETURNING `+jobColumns,
		subRow.ID, model.JobStatusQueued, callbackURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create submission: insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("postgres: create submission: commit: %w", err)
	}
	return subRow.toModel(), jobRow.toModel(), nil
}

func (s *submissionStore) Get(ctx context.Context, id int64) (*model.Submission, error) {
	var row submissionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get submission: %w", err)
	}
	return row.toModel(), nil
}

func (s *submissionStore) List(ctx context.Context, filter store.SubmissionFilter) ([]*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	var args []interface{}
	if filter.UID != nil {
		args = append(args, *filter.UID)
		query += fmt.Sprintf(" AND uid = $%d", len(args))
	}
	if filter.GID != nil {
		args = append(args, *filter.GID)
		query += fmt.Sprintf(" AND gid = $%d", len(args))
	}
	if filter.ProblemID != nil {
		args = append(args, *filter.ProblemID)
		query += fmt.Sprintf(" AND problem_id = $%d", len(args))
	}
	query += " ORDER BY id ASC"

	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list submissions: %w", err)
	}
	submissions := make([]*model.Submission, len(rows))
	for i := range rows {
		submissions[i] = rows[i].toModel()
	}
	return submissions, nil
}
