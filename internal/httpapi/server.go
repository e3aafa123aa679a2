// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/internal/events"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/metrics"
)

// Server holds the dependencies every handler needs: the engine for
// persistence-backed operations, the auth guard for capability checks, and
// the events surface for websocket/SSE endpoints.
type Server struct {
	engine    *engine.Engine
	guard     *auth.Guard
	events    *events.Events
	logger    logging.Logger
	collector metrics.Collector
}

// New builds a Server with a no-op metrics collector; Router installs the
// real one. A nil logger falls back to a no-op one.
func New(eng *engine.Engine, guard *auth.Guard, ev *events.Events, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Server{engine: eng, guard: guard, events: ev, logger: logger, collector: metrics.NoOpCollector{}}
}

// Router builds the gorilla/mux router implementing spec §6's endpoint
// table, wrapped in logging/metrics/recovery middleware.
func (s *Server) Router(collector metrics.Collector) *mux.Router {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	s.collector = collector

	r := mux.NewRouter().StrictSlash(true)
	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))
	r.Use(metricsMiddleware(collector))

	r.HandleFunc("/amisane", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/api_key", s.handleIssueAPIKey).Methods(http.MethodPost)

	r.HandleFunc("/submissions", s.handleListSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/submissions/uid/{uid}", s.handleListSubmissionsByUID).Methods(http.MethodGet)
	r.HandleFunc("/submissions/gid/{gid}", s.handleListSubmissionsByGID).Methods(http.MethodGet)
	r.HandleFunc("/submissions/problem/{problem_id}", s.handleListSubmissionsByProblem).Methods(http.MethodGet)
	r.HandleFunc("/submissions", s.handleCreateSubmission).Methods(http.MethodPost)
	r.HandleFunc("/submissions/{id}", s.handleGetSubmission).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/create_job", s.handleCreateJob).Methods(http.MethodPost)

	r.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/uid/{uid}", s.handleListJobsByUID).Methods(http.MethodGet)
	r.HandleFunc("/jobs/gid/{gid}", s.handleListJobsByGID).Methods(http.MethodGet)
	r.HandleFunc("/jobs/problem/{problem_id}", s.handleListJobsByProblem).Methods(http.MethodGet)
	r.HandleFunc("/jobs/claim", s.handleClaim).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/release", s.handleRelease).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", s.handleCancelJob).Methods(http.MethodDelete)

	r.HandleFunc("/problems", s.handleListProblems).Methods(http.MethodGet)
	r.HandleFunc("/problems", s.handleCreateProblem).Methods(http.MethodPost)
	r.HandleFunc("/problems/{id}", s.handleGetProblem).Methods(http.MethodGet)
	r.HandleFunc("/problems/{id}", s.handleUpdateProblem).Methods(http.MethodPut)

	if s.events != nil {
		r.HandleFunc("/events/ws", s.events.ServeWebSocket)
		r.HandleFunc("/events/sse", s.events.SSE.HandleSSE)
	}

	return r
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeEmpty(w, http.StatusOK)
}
