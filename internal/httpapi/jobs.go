// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"net/http"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

// principalKey names a claim hit/miss metric by the requesting principal
// rather than a fixed label, so per-jury claim throughput is distinguishable.
func principalKey(p *auth.Principal) string {
	if p == nil || p.Name == "" {
		return "claim"
	}
	return "claim:" + p.Name
}

// handleListJobs implements GET /jobs (unfiltered).
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.listJobs(w, r, store.JobFilter{})
}

// handleListJobsByUID implements GET /jobs/uid/{u}.
func (s *Server) handleListJobsByUID(w http.ResponseWriter, r *http.Request) {
	uid, err := parsePathID(r, "uid")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listJobs(w, r, store.JobFilter{UID: &uid})
}

// handleListJobsByGID implements GET /jobs/gid/{g}.
func (s *Server) handleListJobsByGID(w http.ResponseWriter, r *http.Request) {
	gid, err := parsePathID(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listJobs(w, r, store.JobFilter{GID: &gid})
}

// handleListJobsByProblem implements GET /jobs/problem/{p}.
func (s *Server) handleListJobsByProblem(w http.ResponseWriter, r *http.Request) {
	problemID, err := parsePathID(r, "problem_id")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listJobs(w, r, store.JobFilter{ProblemID: &problemID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request, filter store.JobFilter) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	jobs, err := s.engine.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.JobDetails, len(jobs))
	for i, job := range jobs {
		out[i] = job.Details()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetJob implements GET /jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := s.engine.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Details())
}

// handleClaim implements POST /jobs/claim (spec §6): 200 with claim_details,
// 204 if nothing is claimable.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.authenticate(w, r, auth.CapabilityJury)
	if !ok {
		return
	}

	_, details, err := s.engine.Claim(r.Context())
	if err != nil {
		var ce *coordinatorerrors.CoordinatorError
		if errors.As(err, &ce) && ce.Code == coordinatorerrors.ErrorCodeNoContent {
			s.collector.RecordClaimMiss(principalKey(principal))
			writeEmpty(w, http.StatusNoContent)
			return
		}
		writeError(w, err)
		return
	}

	s.collector.RecordClaimHit(principalKey(principal))
	writeJSON(w, http.StatusOK, details)
}

type releaseRequest struct {
	VerificationCode string `json:"verification_code"`
}

// handleRelease implements POST /jobs/{id}/release.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityJury); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req releaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.engine.Release(r.Context(), id, req.VerificationCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Details())
}

type submitRequest struct {
	VerificationCode string  `json:"verification_code"`
	ExecutionTime    float64 `json:"execution_time"`
	ExecutionMemory  int64   `json:"execution_memory"`
	LastRanCase      int     `json:"last_ran_case"`
	Verdict          *string `json:"verdict,omitempty"`
}

// handleSubmit implements POST /jobs/{id}/submit.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityJury); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.engine.Submit(r.Context(), id, engine.SubmitParams{
		VerificationCode: req.VerificationCode,
		ExecutionTime:    req.ExecutionTime,
		ExecutionMemory:  req.ExecutionMemory,
		LastRanCase:      req.LastRanCase,
		Verdict:          req.Verdict,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Details())
}

// handleCancelJob implements DELETE /jobs/{id}.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := s.engine.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Details())
}
