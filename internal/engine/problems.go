// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

// CreateProblem validates and persists a new problem (POST /problems, spec
// §6): 409 if the caller-assigned id already exists, 400 if any of the
// generator/grader/source_verifier language codes is unsupported.
func (e *Engine) CreateProblem(ctx context.Context, p *model.Problem) (*model.Problem, error) {
	if err := validateProblemLanguages(p); err != nil {
		return nil, err
	}
	if err := e.store.Problems().Create(ctx, p); err != nil {
		return nil, translateStoreErr(err)
	}
	return p, nil
}

// GetProblem fetches a problem by id, honoring the If-Modified-Since
// conditional-fetch rule of spec §6 when ifModifiedSince is non-nil: the
// call returns ErrorCodeNotModified (mapped to 304) without re-serializing
// the body when the problem hasn't changed.
func (e *Engine) GetProblem(ctx context.Context, id int64, ifModifiedSince *int64) (*model.Problem, error) {
	p, err := e.store.Problems().Get(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !p.NeedsSend(ifModifiedSince) {
		return nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeNotModified, "problem unchanged")
	}
	return p, nil
}

// ListProblems returns every problem.
func (e *Engine) ListProblems(ctx context.Context) ([]*model.Problem, error) {
	problems, err := e.store.Problems().List(ctx)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return problems, nil
}

// UpdateProblem applies a partial update (PUT /problems/{id}, spec §6):
// only fields present in patch change; id and last_modified are never
// settable by the caller.
func (e *Engine) UpdateProblem(ctx context.Context, id int64, patch store.ProblemPatch) (*model.Problem, error) {
	if patch.GeneratorLanguage != nil && !model.IsSupportedLanguage(string(*patch.GeneratorLanguage)) {
		return nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported generator language").
			WithDetails(string(*patch.GeneratorLanguage))
	}
	if patch.GraderLanguage != nil && !model.IsSupportedLanguage(string(*patch.GraderLanguage)) {
		return nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported grader language").
			WithDetails(string(*patch.GraderLanguage))
	}
	if patch.SourceVerifierLanguage != nil && !model.IsSupportedLanguage(string(*patch.SourceVerifierLanguage)) {
		return nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported source_verifier language").
			WithDetails(string(*patch.SourceVerifierLanguage))
	}

	p, err := e.store.Problems().Update(ctx, id, patch)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return p, nil
}

func validateProblemLanguages(p *model.Problem) error {
	if !model.IsSupportedLanguage(string(p.GeneratorLanguage)) {
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported generator language").
			WithDetails(string(p.GeneratorLanguage))
	}
	if !model.IsSupportedLanguage(string(p.GraderLanguage)) {
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported grader language").
			WithDetails(string(p.GraderLanguage))
	}
	if p.SourceVerifierLanguage != nil && !model.IsSupportedLanguage(string(*p.SourceVerifierLanguage)) {
		return coordinatorerrors.New(coordinatorerrors.ErrorCodeUnsupportedLanguage, "unsupported source_verifier language").
			WithDetails(string(*p.SourceVerifierLanguage))
	}
	return nil
}
