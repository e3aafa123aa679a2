// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/easyctf/judge-coordinator/internal/store"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

type createSubmissionRequest struct {
	UID         *int64  `json:"uid,omitempty"`
	GID         *int64  `json:"gid,omitempty"`
	ProblemID   int64   `json:"problem_id"`
	Code        string  `json:"code"`
	Language    string  `json:"language"`
	CallbackURL *string `json:"callback_url,omitempty"`
}

type createSubmissionResponse struct {
	ID    int64 `json:"id"`
	JobID int64 `json:"job_id"`
}

// handleCreateSubmission implements POST /submissions (spec §6).
func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	var req createSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub, job, err := s.engine.CreateSubmission(r.Context(), req.UID, req.GID, req.ProblemID, req.Code, req.Language, req.CallbackURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSubmissionResponse{ID: sub.ID, JobID: job.ID})
}

// handleGetSubmission implements GET /submissions/{id}.
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	sub, jobs, err := s.engine.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub.Details(jobs))
}

// handleListSubmissions implements GET /submissions (unfiltered).
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	s.listSubmissions(w, r, store.SubmissionFilter{})
}

// handleListSubmissionsByUID implements GET /submissions/uid/{u}.
func (s *Server) handleListSubmissionsByUID(w http.ResponseWriter, r *http.Request) {
	uid, err := parsePathID(r, "uid")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listSubmissions(w, r, store.SubmissionFilter{UID: &uid})
}

// handleListSubmissionsByGID implements GET /submissions/gid/{g}.
func (s *Server) handleListSubmissionsByGID(w http.ResponseWriter, r *http.Request) {
	gid, err := parsePathID(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listSubmissions(w, r, store.SubmissionFilter{GID: &gid})
}

// handleListSubmissionsByProblem implements GET /submissions/problem/{p}.
func (s *Server) handleListSubmissionsByProblem(w http.ResponseWriter, r *http.Request) {
	problemID, err := parsePathID(r, "problem_id")
	if err != nil {
		writeError(w, err)
		return
	}
	s.listSubmissions(w, r, store.SubmissionFilter{ProblemID: &problemID})
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request, filter store.SubmissionFilter) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	subs, err := s.engine.ListSubmissions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]interface{}, len(subs))
	for i, sub := range subs {
		out[i] = sub.Details(nil)
	}
	writeJSON(w, http.StatusOK, out)
}

type createJobRequest struct {
	CallbackURL *string `json:"callback_url,omitempty"`
}

type createJobResponse struct {
	JobID int64 `json:"job_id"`
}

// handleCreateJob implements POST /submissions/{id}/create_job.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityReader); !ok {
		return
	}

	submissionID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.engine.CreateJob(r.Context(), submissionID, req.CallbackURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createJobResponse{JobID: job.ID})
}

func parsePathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, coordinatorerrors.Malformed(name + " must be an integer").WithDetails(raw)
	}
	return id, nil
}
