// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"

	"github.com/easyctf/judge-coordinator/pkg/auth"
)

type issueAPIKeyRequest struct {
	Name   string `json:"name"`
	Jury   bool   `json:"jury"`
	Reader bool   `json:"reader"`
}

type apiKeyResponse struct {
	Name       *string `json:"name"`
	Key        string  `json:"key"`
	PermJury   bool    `json:"perm_jury"`
	PermReader bool    `json:"perm_reader"`
}

// handleIssueAPIKey implements POST /api_key (spec §6): master-only, never
// issues a master key, and reads its own independent jury/reader flags —
// a reader-only request must not silently become a jury key.
func (s *Server) handleIssueAPIKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, auth.CapabilityMaster); !ok {
		return
	}

	var req issueAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	key, err := s.engine.IssueAPIKey(r.Context(), req.Name, req.Jury, req.Reader)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiKeyResponse{
		Name:       key.Name,
		Key:        key.Key,
		PermJury:   key.PermJury,
		PermReader: key.PermReader,
	})
}
