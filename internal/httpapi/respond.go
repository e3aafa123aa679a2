// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package httpapi implements the coordinator's external HTTP surface (spec
// §6): the api_key-guarded submission, job, problem, and key-issuing
// endpoints, wired over internal/engine and internal/events.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeEmpty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// writeError maps err onto the status code table of spec §7 and writes the
// CoordinatorError body, or a generic 500 body for anything else.
func writeError(w http.ResponseWriter, err error) {
	status := coordinatorerrors.HTTPStatus(err)
	if status == http.StatusNoContent || status == http.StatusNotModified {
		writeEmpty(w, status)
		return
	}

	ce, ok := err.(*coordinatorerrors.CoordinatorError)
	if !ok {
		ce = coordinatorerrors.New(coordinatorerrors.ErrorCodeInternal, "internal error")
	}
	writeJSON(w, status, ce)
}

// decodeJSON decodes the request body into v. A body-less request (POST with
// no payload, e.g. create_job with no callback_url) leaves v at its zero
// value rather than erroring on EOF.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return coordinatorerrors.Malformed("invalid JSON body").WithDetails(err.Error())
	}
	return nil
}
