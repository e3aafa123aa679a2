// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package store defines the coordinator's persistence contract: transactional
// CRUD and row-locked claim selection over jobs, submissions, problems, and
// api keys. internal/store/postgres provides the concrete implementation.
package store

import (
	"context"
	"errors"

	"github.com/easyctf/judge-coordinator/internal/model"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an update is illegal given the row's current
// state (e.g. releasing a job that isn't started).
var ErrConflict = errors.New("store: conflict")

// ErrDuplicate is returned when a create would violate a uniqueness
// constraint (e.g. a problem id that already exists).
var ErrDuplicate = errors.New("store: duplicate")

// ErrForbidden is returned when a supplied verification code does not match
// the job's stored one.
var ErrForbidden = errors.New("store: forbidden")

// JobFilter narrows a job list query. A zero field means "unfiltered".
type JobFilter struct {
	UID          *int64
	GID          *int64
	ProblemID    *int64
	SubmissionID *int64
}

// SubmissionFilter narrows a submission list query.
type SubmissionFilter struct {
	UID       *int64
	GID       *int64
	ProblemID *int64
}

// SubmitParams carries a worker's progress/verdict report for Submit.
type SubmitParams struct {
	VerificationCode int64
	ExecutionTime    float64
	ExecutionMemory  int64
	LastRanCase      int
	Verdict          *model.Verdict
}

// ProblemPatch carries only the fields a PUT /problems/{id} request supplied;
// nil fields are left unchanged.
type ProblemPatch struct {
	TestCases              *int
	TimeLimit              *float64
	MemoryLimit            *int64
	GeneratorCode          *string
	GeneratorLanguage      *model.Language
	GraderCode             *string
	GraderLanguage         *model.Language
	SourceVerifierCode     *string
	SourceVerifierLanguage *model.Language
}

// ProblemStore persists problem definitions.
type ProblemStore interface {
	Create(ctx context.Context, p *model.Problem) error
	Get(ctx context.Context, id int64) (*model.Problem, error)
	List(ctx context.Context) ([]*model.Problem, error)
	Update(ctx context.Context, id int64, patch ProblemPatch) (*model.Problem, error)
}

// SubmissionStore persists submissions and creates their first job.
type SubmissionStore interface {
	// CreateWithNewJob inserts s and a new queued job targeting it in one
	// transaction, mirroring spec §3's "every submission creates at least
	// one job at creation time."
	CreateWithNewJob(ctx context.Context, s *model.Submission, callbackURL *string) (*model.Submission, *model.Job, error)
	Get(ctx context.Context, id int64) (*model.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]*model.Submission, error)
}

// JobStore persists jobs and implements the claim dispatcher's atomic
// selection (§4.2).
type JobStore interface {
	// Create inserts a new queued job for an existing submission (the
	// create_job endpoint's reuse path, as opposed to CreateWithNewJob).
	Create(ctx context.Context, submissionID int64, callbackURL *string) (*model.Job, error)
	Get(ctx context.Context, id int64) (*model.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*model.Job, error)

	// ClaimNext selects the smallest-(creation_time,id) claimable job under
	// a row-level exclusive lock, transitions it to started with a fresh
	// claim_time and verification_code, and returns it. Returns ErrNotFound
	// if nothing is claimable (the caller maps this to 204).
	ClaimNext(ctx context.Context) (*model.Job, error)

	// Release transitions a started job back to queued, clearing both
	// claim_time and verification_code. Returns ErrConflict if the job
	// isn't started, ErrForbidden if verificationCode doesn't match the
	// stored one. Parsing the raw request field into an int64 (and
	// returning 400 on failure) is the caller's job.
	Release(ctx context.Context, id int64, verificationCode int64) (*model.Job, error)

	// Submit applies a worker's progress/verdict report. testCases is the
	// target problem's test_cases count, used to decide the
	// started -> awaiting_verdict transition. Returns ErrForbidden if
	// params.VerificationCode doesn't match the stored one.
	Submit(ctx context.Context, id int64, testCases int, params SubmitParams) (*model.Job, error)

	// Cancel transitions any non-terminal job to cancelled. Returns
	// ErrConflict if already finished or cancelled.
	Cancel(ctx context.Context, id int64) (*model.Job, error)

	// CountClaimable reports how many jobs currently satisfy the claimable
	// predicate of ClaimNext, without claiming any of them. Used by the
	// autoscaler's per-tick sample (spec §4.3).
	CountClaimable(ctx context.Context) (int, error)
}

// APIKeyStore persists api keys and resolves bearer tokens to principals.
type APIKeyStore interface {
	Create(ctx context.Context, k *model.APIKey) error
	Lookup(ctx context.Context, key string) (*model.APIKey, error)
}

// Store aggregates every entity store the coordinator needs.
type Store interface {
	Problems() ProblemStore
	Submissions() SubmissionStore
	Jobs() JobStore
	APIKeys() APIKeyStore
}
