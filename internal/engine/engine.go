// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the Job Lifecycle Engine and Claim Dispatcher
// (spec §4.1, §4.2): the state machine over evaluation jobs, the atomic
// claim selection worker fleets pull from, and the event/callback side
// effects each transition fires. Persistence and its locking discipline live
// one layer down in internal/store; this package owns only the rules of
// when a transition is legal and what it emits.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
	"github.com/easyctf/judge-coordinator/pkg/logging"
)

// Engine wraps a Store with the lifecycle rules, event emission, and
// callback firing of spec §4.1/§4.2.
type Engine struct {
	store     store.Store
	events    Emitter
	callbacks CallbackFirer
	logger    logging.Logger
}

// New builds an Engine. A nil events or callbacks argument falls back to a
// no-op implementation, letting callers (and tests) opt out of either side
// effect independently.
func New(s store.Store, events Emitter, callbacks CallbackFirer, logger logging.Logger) *Engine {
	if events == nil {
		events = NoopEmitter{}
	}
	if callbacks == nil {
		callbacks = NoopCallbackFirer{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{store: s, events: events, callbacks: callbacks, logger: logger}
}

// SetEmitter rebinds the engine's event sink after construction. It exists
// for the coordinator process's startup ordering: internal/events builds
// its Dispatcher against an already-constructed Engine, so the Engine must
// exist before its Redis-backed Emitter does; callers wire a no-op emitter
// into New and bind the real one here once it's built.
func (e *Engine) SetEmitter(events Emitter) {
	if events == nil {
		events = NoopEmitter{}
	}
	e.events = events
}

// CreateSubmission validates and persists a new submission and its first
// queued job in one transaction (spec §3: "every submission creates at
// least one job at creation time"). Mirrors the 400 conditions of the
// POST /submissions endpoint (spec §6): missing problem, unsupported
// language, oversized callback_url.
func (e *Engine) CreateSubmission(ctx context.Context, uid, gid *int64, problemID int64, code, language string, callbackURL *string) (*model.Submission, *model.Job, error) {
	if _, err := e.store.Problems().Get(ctx, problemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, coordinatorerrors.Malformed("problem not found").WithDetails(fmt.Sprintf("problem_id=%d", problemID))
		}
		return nil, nil, err
	}
	if !model.IsSupportedLanguage(language) {
		return nil, nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported language").WithDetails(language)
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		return nil, nil, err
	}

	sub := &model.Submission{
		UID:       uid,
		GID:       gid,
		Time:      time.Now(),
		ProblemID: problemID,
		Code:      code,
		Language:  model.Language(language),
	}
	created, job, err := e.store.Submissions().CreateWithNewJob(ctx, sub, callbackURL)
	if err != nil {
		return nil, nil, translateStoreErr(err)
	}

	details := created.Details(nil)
	e.emit(ctx, RoomSubmissions, EventSubmissionNew, details)
	e.emit(ctx, SubmissionRoom(created.ID), EventSubmissionNew, details)

	jobDetails := job.Details()
	e.emit(ctx, RoomJobs, EventJobNew, jobDetails)
	e.emit(ctx, SubmissionRoom(created.ID), EventJobNew, jobDetails)

	return created, job, nil
}

// CreateJob adds a rerun job to an existing submission (the
// POST /submissions/{id}/create_job path, as distinct from the
// submission-creating path above).
func (e *Engine) CreateJob(ctx context.Context, submissionID int64, callbackURL *string) (*model.Job, error) {
	if err := validateCallbackURL(callbackURL); err != nil {
		return nil, err
	}
	if _, err := e.store.Submissions().Get(ctx, submissionID); err != nil {
		return nil, translateStoreErr(err)
	}

	job, err := e.store.Jobs().Create(ctx, submissionID, callbackURL)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	details := job.Details()
	e.emit(ctx, RoomJobs, EventJobNew, details)
	e.emit(ctx, SubmissionRoom(submissionID), EventJobNew, details)
	return job, nil
}

// Claim implements the Claim Dispatcher (spec §4.2): selects and transitions
// the next claimable job, returning its claim_details payload. Returns a
// CoordinatorError with ErrorCodeNoContent (mapped to 204) when nothing is
// claimable.
func (e *Engine) Claim(ctx context.Context) (*model.Job, *model.ClaimDetails, error) {
	job, err := e.store.Jobs().ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeNoContent, "nothing claimable")
		}
		return nil, nil, err
	}

	sub, err := e.store.Submissions().Get(ctx, job.SubmissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: claim: load submission %d: %w", job.SubmissionID, err)
	}

	details := &model.ClaimDetails{
		ID:               job.ID,
		ProblemID:        sub.ProblemID,
		VerificationCode: *job.VerificationCode,
		Code:             sub.Code,
		Language:         string(sub.Language),
	}

	jobDetails := job.Details()
	e.emit(ctx, JobRoom(job.ID), EventJobClaimed, jobDetails)
	e.emit(ctx, RoomJobs, EventJobClaimed, jobDetails)
	e.emit(ctx, SubmissionRoom(job.SubmissionID), EventJobClaimed, jobDetails)

	return job, details, nil
}

// Release returns a started job to queued (spec §4.1). rawVerificationCode
// is the caller's raw request field; a parse failure is reported as
// malformed (400) before the store is ever consulted.
func (e *Engine) Release(ctx context.Context, jobID int64, rawVerificationCode string) (*model.Job, error) {
	code, err := strconv.ParseInt(rawVerificationCode, 10, 64)
	if err != nil {
		return nil, coordinatorerrors.Malformed("verification_code must be an integer")
	}

	job, err := e.store.Jobs().Release(ctx, jobID, code)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	details := job.Details()
	e.emit(ctx, JobRoom(job.ID), EventJobReleased, details)
	e.emit(ctx, RoomJobs, EventJobReleased, details)
	e.emit(ctx, SubmissionRoom(job.SubmissionID), EventJobReleased, details)
	return job, nil
}

// SubmitParams carries a worker's progress/verdict report for Submit, using
// the raw (string) verification code exactly as it arrives on the wire.
type SubmitParams struct {
	VerificationCode string
	ExecutionTime    float64
	ExecutionMemory  int64
	LastRanCase      int
	Verdict          *string
}

// Submit applies a worker's progress/verdict report (spec §4.1). On a
// transition to finished, it fires the submission's callback exactly once,
// off the request path.
func (e *Engine) Submit(ctx context.Context, jobID int64, params SubmitParams) (*model.Job, error) {
	code, err := strconv.ParseInt(params.VerificationCode, 10, 64)
	if err != nil {
		return nil, coordinatorerrors.Malformed("verification_code must be an integer")
	}

	current, err := e.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	sub, err := e.store.Submissions().Get(ctx, current.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("engine: submit: load submission %d: %w", current.SubmissionID, err)
	}
	problem, err := e.store.Problems().Get(ctx, sub.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("engine: submit: load problem %d: %w", sub.ProblemID, err)
	}

	var verdict *model.Verdict
	if params.Verdict != nil && *params.Verdict != "" {
		v := model.Verdict(*params.Verdict)
		if !v.IsValid() {
			return nil, coordinatorerrors.Malformed("unrecognized verdict").WithDetails(*params.Verdict)
		}
		verdict = &v
	}

	job, err := e.store.Jobs().Submit(ctx, jobID, problem.TestCases, store.SubmitParams{
		VerificationCode: code,
		ExecutionTime:    params.ExecutionTime,
		ExecutionMemory:  params.ExecutionMemory,
		LastRanCase:      params.LastRanCase,
		Verdict:          verdict,
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	verdictDetails := job.VerdictDetails()
	e.emit(ctx, JobRoom(job.ID), EventJobUpdated, verdictDetails)
	e.emit(ctx, RoomJobs, EventJobUpdated, verdictDetails)
	e.emit(ctx, SubmissionRoom(job.SubmissionID), EventJobUpdated, verdictDetails)

	if job.Status == model.JobStatusFinished && job.CallbackURL != nil && *job.CallbackURL != "" {
		e.callbacks.Fire(job.ID, *job.CallbackURL, job.Details())
	}

	return job, nil
}

// Cancel transitions any non-terminal job to cancelled (spec §4.1). The
// holding worker is not signalled; it discovers the cancellation on its
// next submit, which then fails with conflict.
func (e *Engine) Cancel(ctx context.Context, jobID int64) (*model.Job, error) {
	job, err := e.store.Jobs().Cancel(ctx, jobID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	details := job.Details()
	e.emit(ctx, JobRoom(job.ID), EventJobCancelled, details)
	e.emit(ctx, RoomJobs, EventJobCancelled, details)
	e.emit(ctx, SubmissionRoom(job.SubmissionID), EventJobCancelled, details)
	return job, nil
}

func validateCallbackURL(callbackURL *string) error {
	if callbackURL != nil && len(*callbackURL) > model.MaxCallbackURLLength {
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeCallbackURLTooLong, "callback_url too long").
			WithDetails(fmt.Sprintf("max %d characters", model.MaxCallbackURLLength))
	}
	return nil
}

// translateStoreErr maps a store sentinel error onto the external error
// taxonomy of spec §7. Any other error (e.g. a driver failure) is returned
// unchanged and becomes a 500 at the HTTP boundary.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		return coordinatorerrors.Conflict("illegal in current state")
	case errors.Is(err, store.ErrForbidden):
		return coordinatorerrors.BadVerification("verification code mismatch")
	case errors.Is(err, store.ErrDuplicate):
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeDuplicateProblem, "already exists")
	default:
		return err
	}
}
