// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

// GetSubmission fetches a submission and the jobs it owns, for the
// GET /submissions/{id} detail payload.
func (e *Engine) GetSubmission(ctx context.Context, id int64) (*model.Submission, []*model.Job, error) {
	sub, err := e.store.Submissions().Get(ctx, id)
	if err != nil {
		return nil, nil, translateStoreErr(err)
	}
	jobs, err := e.store.Jobs().List(ctx, store.JobFilter{SubmissionID: &id})
	if err != nil {
		return nil, nil, translateStoreErr(err)
	}
	return sub, jobs, nil
}

// ListSubmissions returns every submission matching filter, for the
// GET /submissions (and /uid/{u}, /gid/{g}, /problem/{p}) endpoints.
func (e *Engine) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]*model.Submission, error) {
	subs, err := e.store.Submissions().List(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return subs, nil
}

// GetJob fetches a single job by id, for GET /jobs/{id}.
func (e *Engine) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	job, err := e.store.Jobs().Get(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return job, nil
}

// ListJobs returns every job matching filter, for GET /jobs (and
// /uid/{u}, /gid/{g}, /problem/{p}).
func (e *Engine) ListJobs(ctx context.Context, filter store.JobFilter) ([]*model.Job, error) {
	jobs, err := e.store.Jobs().List(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return jobs, nil
}

// CountClaimable reports the current claimable-job count, implementing
// autoscaler.EnqueuedCounter: the per-tick sample the Autoscaler averages
// over (spec §4.3).
func (e *Engine) CountClaimable(ctx context.Context) (int, error) {
	count, err := e.store.Jobs().CountClaimable(ctx)
	if err != nil {
		return 0, translateStoreErr(err)
	}
	return count, nil
}
