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

	"github.com/easyctf/judge-coordinator/internal/idgen"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

type jobStore struct {
	db *sqlx.DB
}

type jobRow struct {
	ID               int64          `db:"id"`
	SubmissionID     int64          `db:"submission_id"`
	CreationTime     time.Time      `db:"creation_time"`
	Status           string         `db:"status"`
	ClaimTime        sql.NullTime   `db:"claim_time"`
	CompletionTime   sql.NullTime   `db:"completion_time"`
	VerificationCode sql.NullInt64  `db:"verification_code"`
	LastRanCase      sql.NullInt32  `db:"last_ran_case"`
	ExecutionTime    sql.NullFloat64 `db:"execution_time"`
	ExecutionMemory  sql.NullInt64  `db:"execution_memory"`
	Verdict          sql.NullString `db:"verdict"`
	CallbackURL      sql.NullString `db:"callback_url"`
}

func (r *jobRow) toModel() *model.Job {
	j := &model.Job{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		CreationTime: r.CreationTime,
		Status:       model.JobStatus(r.Status),
	}
	if r.ClaimTime.Valid {
		j.ClaimTime = &r.ClaimTime.Time
	}
	if r.CompletionTime.Valid {
		j.CompletionTime = &r.CompletionTime.Time
	}
	if r.VerificationCode.Valid {
		j.VerificationCode = &r.VerificationCode.Int64
	}
	if r.LastRanCase.Valid {
		v := int(r.LastRanCase.Int32)
		j.LastRanCase = &v
	}
	if r.ExecutionTime.Valid {
		j.ExecutionTime = &r.ExecutionTime.Float64
	}
	if r.ExecutionMemory.Valid {
		j.ExecutionMemory = &r.ExecutionMemory.Int64
	}
	if r.Verdict.Valid {
		v := model.Verdict(r.Verdict.String)
		j.Verdict = &v
	}
	if r.CallbackURL.Valid {
		j.CallbackURL = &r.CallbackURL.String
	}
	return j
}

const jobColumns = `id, submission_id, creation_time, status, claim_time, completion_time,
	verification_code, last_ran_case, execution_time, execution_memory, verdict, callback_url`

func (s *jobStore) Create(ctx context.Context, submissionID int64, callbackURL *string) (*model.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO jobs (submission_id, creation_time, status, callback_url)
		VALUES ($1, now(), $2, $3)
		RETURNING `+jobColumns,
		submissionID, model.JobStatusQueued, callbackURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create job: %w", err)
	}
	return row.toModel(), nil
}

func (s *jobStore) Get(ctx context.Context, id int64) (*model.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	return row.toModel(), nil
}

var jobListColumns = `j.id, j.submission_id, j.creation_time, j.status, j.claim_time, j.completion_time,
	j.verification_code, j.last_ran_case, j.execution_time, j.execution_memory, j.verdict, j.callback_url`

func (s *jobStore) List(ctx context.Context, filter store.JobFilter) ([]*model.Job, error) {
	query := `SELECT ` + jobListColumns + ` FROM jobs j JOIN submissions s ON s.id = j.submission_id WHERE 1=1`
	var args []interface{}
	if filter.SubmissionID != nil {
		args = append(args, *filter.SubmissionID)
		query += fmt.Sprintf(" AND j.submission_id = $%d", len(args))
	}
	if filter.UID != nil {
		args = append(args, *filter.UID)
		query += fmt.Sprintf(" AND s.uid = $%d", len(args))
	}
	if filter.GID != nil {
		args = append(args, *filter.GID)
		query += fmt.Sprintf(" AND s.gid = $%d", len(args))
	}
	if filter.ProblemID != nil {
		args = append(args, *filter.ProblemID)
		query += fmt.Sprintf(" AND s.problem_id = $%d", len(args))
	}
	query += " ORDER BY j.creation_time ASC, j.id ASC"

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	jobs := make([]*model.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].toModel()
	}
	return jobs, nil
}

// ClaimNext implements spec §4.2's atomic selection: lock the single
// smallest-(creation_time,id) claimable candidate, then transition it.
func (s *jobStore) ClaimNext(ctx context.Context) (*model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim: begin tx: %w", err)
	}
	defer tx.Rollback()

	staleCutoff := time.Now().Add(-model.StaleClaimWindow)

	var row jobRow
	err = tx.GetContext(ctx, &row, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = $1
		   OR (status = $2 AND claim_time < $3)
		ORDER BY creation_time ASC, id ASC
		LIMIT 1
		FOR UPDATE`,
		model.JobStatusQueued, model.JobStatusStarted, staleCutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: claim: select candidate: %w", err)
	}

	code, err := idgen.VerificationCode()
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &row, `
		UPDATE jobs SET status = $1, claim_time = now(), verification_code = $2
		WHERE id = $3
		RETURNING `+jobColumns,
		model.JobStatusStarted, code, row.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim: update candidate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: claim: commit: %w", err)
	}
	return row.toModel(), nil
}

func (s *jobStore) Release(ctx context.Context, id int64, verificationCode int64) (*model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: release: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: release: select: %w", err)
	}
	if model.JobStatus(row.Status) != model.JobStatusStarted {
		return nil, store.ErrConflict
	}
	if row.VerificationCode.Valid && row.VerificationCode.Int64 != verificationCode {
		return nil, store.ErrForbidden
	}

	err = tx.GetContext(ctx, &row, `
		UPDATE jobs SET status = $1, claim_time = NULL, verification_code = NULL
		WHERE id = $2
		RETURNING `+jobColumns,
		model.JobStatusQueued, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: release: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: release: commit: %w", err)
	}
	return row.toModel(), nil
}

func (s *jobStore) Submit(ctx context.Context, id int64, testCases int, params store.SubmitParams) (*model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: submit: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: submit: select: %w", err)
	}

	status := model.JobStatus(row.Status)
	if status != model.JobStatusStarted && status != model.JobStatusAwaitingVerdict {
		return nil, store.ErrConflict
	}
	if row.VerificationCode.Valid && row.VerificationCode.Int64 != params.VerificationCode {
		return nil, store.ErrForbidden
	}

	newStatus := status
	if params.LastRanCase == testCases {
		newStatus = model.JobStatusAwaitingVerdict
	}

	finishing := params.Verdict != nil
	if finishing {
		newStatus = model.JobStatusFinished
	}

	query := `
		UPDATE jobs SET status = $1, execution_time = $2, execution_memory = $3, last_ran_case = $4`
	args := []interface{}{newStatus, params.ExecutionTime, params.ExecutionMemory, params.LastRanCase}
	if finishing {
		query += `, verdict = $5, completion_time = now(), verification_code = NULL WHERE id = $6 RETURNING ` + jobColumns
		args = append(args, *params.Verdict, id)
	} else {
		query += ` WHERE id = $5 RETURNING ` + jobColumns
		args = append(args, id)
	}

	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: submit: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: submit: commit: %w", err)
	}
	return row.toModel(), nil
}

// CountClaimable reports how many jobs currently satisfy ClaimNext's
// selection predicate, without locking or transitioning any of them.
func (s *jobStore) CountClaimable(ctx context.Context) (int, error) {
	staleCutoff := time.Now().Add(-model.StaleClaimWindow)
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM jobs
		WHERE status = $1
		   OR (status = $2 AND claim_time < $3)`,
		model.JobStatusQueued, model.JobStatusStarted, staleCutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: count claimable jobs: %w", err)
	}
	return count, nil
}

func (s *jobStore) Cancel(ctx context.Context, id int64) (*model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel: select: %w", err)
	}
	status := model.JobStatus(row.Status)
	if status == model.JobStatusFinished || status == model.JobStatusCancelled {
		return nil, store.ErrConflict
	}

	err = tx.GetContext(ctx, &row, `
		UPDATE jobs SET status = $1 WHERE id = $2 RETURNING `+jobColumns,
		model.JobStatusCancelled, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: cancel: commit: %w", err)
	}
	return row.toModel(), nil
}
