// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

// handleListProblems implements GET /problems. Either capability may read
// problem listings (spec §6: jury or reader).
func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityJury, auth.CapabilityReader); !ok {
		return
	}

	problems, err := s.engine.ListProblems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.ProblemDetails, len(problems))
	for i, p := range problems {
		out[i] = p.Details()
	}
	writeJSON(w, http.StatusOK, out)
}

type createProblemRequest struct {
	ID                     int64           `json:"id"`
	TestCases              int             `json:"test_cases"`
	TimeLimit              float64         `json:"time_limit"`
	MemoryLimit            int64           `json:"memory_limit"`
	GeneratorCode          string          `json:"generator_code"`
	GeneratorLanguage      model.Language  `json:"generator_language"`
	GraderCode             string          `json:"grader_code"`
	GraderLanguage         model.Language  `json:"grader_language"`
	SourceVerifierCode     *string         `json:"source_verifier_code,omitempty"`
	SourceVerifierLanguage *model.Language `json:"source_verifier_language,omitempty"`
}

// handleCreateProblem implements POST /problems: the id is caller-assigned,
// not generated.
func (s *Server) handleCreateProblem(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	var req createProblemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p := &model.Problem{
		ID:                     req.ID,
		TestCases:              req.TestCases,
		TimeLimit:              req.TimeLimit,
		MemoryLimit:            req.MemoryLimit,
		GeneratorCode:          req.GeneratorCode,
		GeneratorLanguage:      req.GeneratorLanguage,
		GraderCode:             req.GraderCode,
		GraderLanguage:         req.GraderLanguage,
		SourceVerifierCode:     req.SourceVerifierCode,
		SourceVerifierLanguage: req.SourceVerifierLanguage,
	}

	created, err := s.engine.CreateProblem(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.Details())
}

// handleGetProblem implements GET /problems/{id}. If-Modified-Since is
// parsed as unix seconds (spec §6), not the HTTP-date format the header
// name would otherwise imply.
func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityJury, auth.CapabilityReader); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var ifModifiedSince *int64
	if raw := r.Header.Get("If-Modified-Since"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, coordinatorerrors.Malformed("If-Modified-Since must be unix seconds").WithDetails(raw))
			return
		}
		ifModifiedSince = &seconds
	}

	p, err := s.engine.GetProblem(r.Context(), id, ifModifiedSince)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Details())
}

type updateProblemRequest struct {
	TestCases              *int            `json:"test_cases,omitempty"`
	TimeLimit              *float64        `json:"time_limit,omitempty"`
	MemoryLimit            *int64          `json:"memory_limit,omitempty"`
	GeneratorCode          *string         `json:"generator_code,omitempty"`
	GeneratorLanguage      *model.Language `json:"generator_language,omitempty"`
	GraderCode             *string         `json:"grader_code,omitempty"`
	GraderLanguage         *model.Language `json:"grader_language,omitempty"`
	SourceVerifierCode     *string         `json:"source_verifier_code,omitempty"`
	SourceVerifierLanguage *model.Language `json:"source_verifier_language,omitempty"`
}

// handleUpdateProblem implements PUT /problems/{id}: a partial update, id
// and last_modified are never client-settable.
func (s *Server) handleUpdateProblem(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateProblemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := store.ProblemPatch{
		TestCases:              req.TestCases,
		TimeLimit:              req.TimeLimit,
		MemoryLimit:            req.MemoryLimit,
		GeneratorCode:          req.GeneratorCode,
		GeneratorLanguage:      req.GeneratorLanguage,
		GraderCode:             req.GraderCode,
		GraderLanguage:         req.GraderLanguage,
		SourceVerifierCode:     req.SourceVerifierCode,
		SourceVerifierLanguage: req.SourceVerifierLanguage,
	}

	p, err := s.engine.UpdateProblem(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Details())
}
