// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"time"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	"github.com/easyctf/judge-coordinator/pkg/metrics"
)

// memStore is the minimal store.Store double this package's handler tests
// need; internal/engine's own fakeStore isn't exported, so the tests build
// their fixtures through a real Engine backed by this tiny in-memory store,
// the same approach internal/events' dispatcher tests use.
type memStore struct {
	problems    map[int64]*model.Problem
	submissions map[int64]*model.Submission
	jobs        map[int64]*model.Job
	keys        map[string]*model.APIKey
}

func newMemStore() *memStore {
	return &memStore{
		problems:    map[int64]*model.Problem{},
		submissions: map[int64]*model.Submission{},
		jobs:        map[int64]*model.Job{},
		keys:        map[string]*model.APIKey{},
	}
}

func (m *memStore) Problems() store.ProblemStore       { return memProblems{m} }
func (m *memStore) Submissions() store.SubmissionStore { return memSubmissions{m} }
func (m *memStore) Jobs() store.JobStore               { return memJobs{m} }
func (m *memStore) APIKeys() store.APIKeyStore         { return memAPIKeys{m} }

type memProblems struct{ m *memStore }

func (p memProblems) Create(ctx context.Context, problem *model.Problem) error {
	if _, exists := p.m.problems[problem.ID]; exists {
		return store.ErrDuplicate
	}
	problem.LastModified = time.Now()
	p.m.problems[problem.ID] = problem
	return nil
}

func (p memProblems) Get(ctx context.Context, id int64) (*model.Problem, error) {
	pr, ok := p.m.problems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return pr, nil
}

func (p memProblems) List(ctx context.Context) ([]*model.Problem, error) {
	var out []*model.Problem
	for _, pr := range p.m.problems {
		out = append(out, pr)
	}
	return out, nil
}

func (p memProblems) Update(ctx context.Context, id int64, patch store.ProblemPatch) (*model.Problem, error) {
	pr, ok := p.m.problems[id]
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
	return pr, nil
}

type memSubmissions struct{ m *memStore }

func (s memSubmissions) CreateWithNewJob(ctx context.Context, sub *model.Submission, callbackURL *string) (*model.Submission, *model.Job, error) {
	sub.ID = int64(len(s.m.submissions) + 1)
	s.m.submissions[sub.ID] = sub
	job := &model.Job{ID: int64(len(s.m.jobs) + 1), SubmissionID: sub.ID, CreationTime: time.Now(), Status: model.JobStatusQueued}
	s.m.jobs[job.ID] = job
	return sub, job, nil
}

func (s memSubmissions) Get(ctx context.Context, id int64) (*model.Submission, error) {
	sub, ok := s.m.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sub, nil
}

func (s memSubmissions) List(ctx context.Context, filter store.SubmissionFilter) ([]*model.Submission, error) {
	var out []*model.Submission
	for _, sub := range s.m.submissions {
		if filter.UID != nil && (sub.UID == nil || *sub.UID != *filter.UID) {
			continue
		}
		if filter.GID != nil && (sub.GID == nil || *sub.GID != *filter.GID) {
			continue
		}
		if filter.ProblemID != nil && sub.ProblemID != *filter.ProblemID {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

type memJobs struct{ m *memStore }

func (j memJobs) Create(ctx context.Context, submissionID int64, callbackURL *string) (*model.Job, error) {
	if _, ok := j.m.submissions[submissionID]; !ok {
		return nil, store.ErrNotFound
	}
	job := &model.Job{ID: int64(len(j.m.jobs) + 1), SubmissionID: submissionID, CreationTime: time.Now(), Status: model.JobStatusQueued}
	j.m.jobs[job.ID] = job
	return job, nil
}

func (j memJobs) Get(ctx context.Context, id int64) (*model.Job, error) {
	job, ok := j.m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (j memJobs) List(ctx context.Context, filter store.JobFilter) ([]*model.Job, error) {
	var out []*model.Job
	for _, job := range j.m.jobs {
		if filter.SubmissionID != nil && job.SubmissionID != *filter.SubmissionID {
			continue
		}
		sub, ok := j.m.submissions[job.SubmissionID]
		if filter.UID != nil && (!ok || sub.UID == nil || *sub.UID != *filter.UID) {
			continue
		}
		if filter.GID != nil && (!ok || sub.GID == nil || *sub.GID != *filter.GID) {
			continue
		}
		if filter.ProblemID != nil && (!ok || sub.ProblemID != *filter.ProblemID) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (j memJobs) ClaimNext(ctx context.Context) (*model.Job, error) {
	now := time.Now()
	for _, job := range j.m.jobs {
		if job.IsClaimable(now) {
			code := int64(42)
			job.VerificationCode = &code
			job.Status = model.JobStatusStarted
			job.ClaimTime = &now
			return job, nil
		}
	}
	return nil, store.ErrNotFound
}

func (j memJobs) Release(ctx context.Context, id int64, verificationCode int64) (*model.Job, error) {
	job, ok := j.m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.VerificationCode == nil || *job.VerificationCode != verificationCode {
		return nil, store.ErrForbidden
	}
	job.Status = model.JobStatusQueued
	job.VerificationCode = nil
	return job, nil
}

func (j memJobs) Submit(ctx context.Context, id int64, testCases int, params store.SubmitParams) (*model.Job, error) {
	job, ok := j.m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.VerificationCode == nil || *job.VerificationCode != params.VerificationCode {
		return nil, store.ErrForbidden
	}
	lastRanCase := params.LastRanCase
	job.LastRanCase = &lastRanCase
	executionTime := params.ExecutionTime
	job.ExecutionTime = &executionTime
	executionMemory := params.ExecutionMemory
	job.ExecutionMemory = &executionMemory
	if params.Verdict != nil {
		now := time.Now()
		job.Status = model.JobStatusFinished
		job.Verdict = params.Verdict
		job.CompletionTime = &now
	} else {
		job.Status = model.JobStatusAwaitingVerdict
	}
	return job, nil
}

func (j memJobs) Cancel(ctx context.Context, id int64) (*model.Job, error) {
	job, ok := j.m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	job.Status = model.JobStatusCancelled
	return job, nil
}

func (j memJobs) CountClaimable(ctx context.Context) (int, error) {
	n := 0
	for _, job := range j.m.jobs {
		if job.IsClaimable(time.Now()) {
			n++
		}
	}
	return n, nil
}

type memAPIKeys struct{ m *memStore }

func (a memAPIKeys) Create(ctx context.Context, k *model.APIKey) error {
	a.m.keys[k.Key] = k
	return nil
}

func (a memAPIKeys) Lookup(ctx context.Context, key string) (*model.APIKey, error) {
	k, ok := a.m.keys[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return k, nil
}

const (
	masterToken = "master-token"
	readerToken = "reader-token"
	juryToken   = "jury-token"
)

// newTestServer builds a Server wired to a fresh in-memory store, pre-seeded
// with one api key per capability.
func newTestServer() (*Server, *memStore) {
	m := newMemStore()
	masterName, readerName, juryName := "master", "reader", "jury"
	m.keys[masterToken] = &model.APIKey{ID: 1, Active: true, Name: &masterName, Key: masterToken, PermMaster: true}
	m.keys[readerToken] = &model.APIKey{ID: 2, Active: true, Name: &readerName, Key: readerToken, PermReader: true}
	m.keys[juryToken] = &model.APIKey{ID: 3, Active: true, Name: &juryName, Key: juryToken, PermJury: true}

	eng := engine.New(m, nil, nil, nil)
	guard := auth.NewGuard(eng)
	s := New(eng, guard, nil, nil)
	s.collector = metrics.NoOpCollector{}
	return s, m
}
