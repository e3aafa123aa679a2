// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"

	"github.com/easyctf/judge-coordinator/pkg/auth"
)

// authenticate resolves the request's api_key against caps, writing the
// spec §7 error response itself on failure. Returns ok=false when the
// caller should return immediately without writing anything further.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, caps ...auth.Capability) (*auth.Principal, bool) {
	principal, err := s.guard.Authenticate(r.Context(), r, caps...)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return principal, true
}
