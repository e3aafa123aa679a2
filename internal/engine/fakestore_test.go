// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/easyctf/judge-coordinator/internal/idgen"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise the engine's
// lifecycle rules without a database, mirroring the postgres implementation's
// transition logic closely enough for single-goroutine tests.
type fakeStore struct {
	mu          sync.Mutex
	problems    map[int64]*model.Problem
	submissions map[int64]*model.Submission
	jobs        map[int64]*model.Job
	apiKeys     map[string]*model.APIKey
	nextSubID   int64
	nextJobID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		problems:    map[int64]*model.Problem{},
		submissions: map[int64]*model.Submission{},
		jobs:        map[int64]*model.Job{},
		apiKeys:     map[string]*model.APIKey{},
	}
}

func (f *fakeStore) Problems() store.ProblemStore { return fakeProblems{f} }
func (f *fakeStore) Submissions() store.SubmissionStore { return fakeSubmissions{f} }
func (f *fakeStore) Jobs() store.JobStore { return fakeJobs{f} }
func (f *fakeStore) APIKeys() store.APIKeyStore { return fakeAPIKeys{f} }

type fakeProblems struct{ f *fakeStore }

func (p fakeProblems) Create(ctx context.Context, problem *model.Problem) error {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	if _, exists := p.f.problems[problem.ID]; exists {
		return store.ErrDuplicate
	}
	problem.LastModified = time.Now()
	cp := *problem
	p.f.problems[problem.ID] = &cp
	return nil
}

func (p fakeProblems) Get(ctx context.Context, id int64) (*model.Problem, error) {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	pr, ok := p.f.problems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (p fakeProblems) List(ctx context.Context) ([]*model.Problem, error) {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	out := make([]*model.Problem, 0, len(p.f.problems))
	for _, pr := range p.f.problems {
		cp := *pr
		out = append(out, &cp)
	}
	return out, nil
}

func (p fakeProblems) Update(ctx context.Context, id int64, patch store.ProblemPatch) (*model.Problem, error) {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	pr, ok := p.f.problems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.TestCases != nil {
		pr.TestCases = *patch.TestCases
	}
	if patch.TimeLimit != nil {
		pr.TimeLimit = *patch.TimeLimit
	}
	if patch.MemoryLimit != nil {
		pr.MemoryLimit = *patch.MemoryLimit
	}
	if patch.GeneratorCode != nil {
		pr.GeneratorCode = *patch.GeneratorCode
	}
	if patch.GeneratorLanguage != nil {
		pr.GeneratorLanguage = *patch.GeneratorLanguage
	}
	if patch.GraderCode != nil {
		pr.GraderCode = *patch.GraderCode
	}
	if patch.GraderLanguage != nil {
		pr.GraderLanguage = *patch.GraderLanguage
	}
	if patch.SourceVerifierCode != nil {
		pr.SourceVerifierCode = patch.SourceVerifierCode
	}
	if patch.SourceVerifierLanguage != nil {
		pr.SourceVerifierLanguage = patch.SourceVerifierLanguage
	}
	pr.LastModified = time.Now()
	cp := *pr
	return &cp, nil
}

type fakeSubmissions struct{ f *fakeStore }

func (s fakeSubmissions) CreateWithNewJob(ctx context.Context, sub *model.Submission, callbackURL *string) (*model.Submission, *model.Job, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.nextSubID++
	sub.ID = s.f.nextSubID
	cp := *sub
	s.f.submissions[sub.ID] = &cp

	s.f.nextJobID++
	job := &model.Job{
		ID:           s.f.nextJobID,
		SubmissionID: sub.ID,
		CreationTime: time.Now(),
		Status:       model.JobStatusQueued,
		CallbackURL:  callbackURL,
	}
	s.f.jobs[job.ID] = job

	subCp, jobCp := *sub, *job
	return &subCp, &jobCp, nil
}

func (s fakeSubmissions) Get(ctx context.Context, id int64) (*model.Submission, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	sub, ok := s.f.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s fakeSubmissions) List(ctx context.Context, filter store.SubmissionFilter) ([]*model.Submission, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	out := make([]*model.Submission, 0, len(s.f.submissions))
	for _, sub := range s.f.submissions {
		cp := *sub
		out = append(out, &cp)
	}
	return out, nil
}

type fakeJobs struct{ f *fakeStore }

func (j fakeJobs) Create(ctx context.Context, submissionID int64, callbackURL *string) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	if _, ok := j.f.submissions[submissionID]; !ok {
		return nil, store.ErrNotFound
	}
	j.f.nextJobID++
	job := &model.Job{
		ID:           j.f.nextJobID,
		SubmissionID: submissionID,
		CreationTime: time.Now(),
		Status:       model.JobStatusQueued,
		CallbackURL:  callbackURL,
	}
	j.f.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (j fakeJobs) Get(ctx context.Context, id int64) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	job, ok := j.f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (j fakeJobs) List(ctx context.Context, filter store.JobFilter) ([]*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	out := make([]*model.Job, 0)
	for _, job := range j.f.jobs {
		if filter.SubmissionID != nil && job.SubmissionID != *filter.SubmissionID {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

func (j fakeJobs) ClaimNext(ctx context.Context) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()

	now := time.Now()
	var best *model.Job
	for _, job := range j.f.jobs {
		if !job.IsClaimable(now) {
			continue
		}
		if best == nil || job.CreationTime.Before(best.CreationTime) ||
			(job.CreationTime.Equal(best.CreationTime) && job.ID < best.ID) {
			best = job
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}

	code, err := idgen.VerificationCode()
	if err != nil {
		return nil, err
	}
	best.Status = model.JobStatusStarted
	claimTime := now
	best.ClaimTime = &claimTime
	best.VerificationCode = &code
	cp := *best
	return &cp, nil
}

func (j fakeJobs) Release(ctx context.Context, id int64, verificationCode int64) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	job, ok := j.f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.Status != model.JobStatusStarted {
		return nil, store.ErrConflict
	}
	if job.VerificationCode != nil && *job.VerificationCode != verificationCode {
		return nil, store.ErrForbidden
	}
	job.Status = model.JobStatusQueued
	job.ClaimTime = nil
	job.VerificationCode = nil
	cp := *job
	return &cp, nil
}

func (j fakeJobs) Submit(ctx context.Context, id int64, testCases int, params store.SubmitParams) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	job, ok := j.f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.Status != model.JobStatusStarted && job.Status != model.JobStatusAwaitingVerdict {
		return nil, store.ErrConflict
	}
	if job.VerificationCode != nil && *job.VerificationCode != params.VerificationCode {
		return nil, store.ErrForbidden
	}

	job.ExecutionTime = &params.ExecutionTime
	job.ExecutionMemory = &params.ExecutionMemory
	lastRanCase := params.LastRanCase
	job.LastRanCase = &lastRanCase

	if lastRanCase == testCases {
		job.Status = model.JobStatusAwaitingVerdict
	}
	if params.Verdict != nil {
		job.Status = model.JobStatusFinished
		now := time.Now()
		job.CompletionTime = &now
		job.Verdict = params.Verdict
		job.VerificationCode = nil
	}
	cp := *job
	return &cp, nil
}

func (j fakeJobs) CountClaimable(ctx context.Context) (int, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	now := time.Now()
	count := 0
	for _, job := range j.f.jobs {
		if job.IsClaimable(now) {
			count++
		}
	}
	return count, nil
}

func (j fakeJobs) Cancel(ctx context.Context, id int64) (*model.Job, error) {
	j.f.mu.Lock()
	defer j.f.mu.Unlock()
	job, ok := j.f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.IsTerminal() {
		return nil, store.ErrConflict
	}
	job.Status = model.JobStatusCancelled
	cp := *job
	return &cp, nil
}

type fakeAPIKeys struct{ f *fakeStore }

func (a fakeAPIKeys) Create(ctx context.Context, k *model.APIKey) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	cp := *k
	a.f.apiKeys[k.Key] = &cp
	return nil
}

func (a fakeAPIKeys) Lookup(ctx context.Context, key string) (*model.APIKey, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	k, ok := a.f.apiKeys[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *k
	return &cp, nil
}
