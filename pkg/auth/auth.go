// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package auth validates the opaque api_key header carried by every request
// and enforces the capability set it grants.
package auth

import (
	"context"
	"net/http"

	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

// HeaderName is the HTTP header carrying the opaque api key token.
const HeaderName = "api_key"

// Capability is one of the three independent permission flags an api key
// carries: jury, reader, master. A tuple of capabilities in a Guard check
// means "any of".
type Capability string

const (
	CapabilityJury   Capability = "jury"
	CapabilityReader Capability = "reader"
	CapabilityMaster Capability = "master"
)

// Principal is the resolved identity behind a valid api key.
type Principal struct {
	Name       string
	Active     bool
	PermJury   bool
	PermReader bool
	PermMaster bool
}

// Has reports whether the principal carries the given capability.
func (p Principal) Has(c Capability) bool {
	switch c {
	case CapabilityJury:
		return p.PermJury
	case CapabilityReader:
		return p.PermReader
	case CapabilityMaster:
		return p.PermMaster
	default:
		return false
	}
}

// HasAny reports whether the principal carries any of the given capabilities.
// An empty list means "no capability required, just a valid key".
func (p Principal) HasAny(caps ...Capability) bool {
	if len(caps) == 0 {
		return true
	}
	for _, c := range caps {
		if p.Has(c) {
			return true
		}
	}
	return false
}

// KeyLookup resolves an opaque api key token to its Principal. Implemented
// by the store so this package stays free of persistence concerns.
type KeyLookup interface {
	LookupAPIKey(ctx context.Context, token string) (*Principal, error)
}

// Guard authenticates a request's api_key header and enforces a capability
// set, mirroring require_perms from the source judge's view layer.
type Guard struct {
	lookup KeyLookup
}

// NewGuard builds a Guard backed by the given key lookup.
func NewGuard(lookup KeyLookup) *Guard {
	return &Guard{lookup: lookup}
}

// Authenticate resolves the request's api key and checks it carries at least
// one of the required capabilities. An empty caps list only requires a valid,
// active key.
func (g *Guard) Authenticate(ctx context.Context, r *http.Request, caps ...Capability) (*Principal, error) {
	token := r.Header.Get(HeaderName)
	if token == "" {
		return nil, coordinatorerrors.NotAuthenticated("missing api_key header")
	}

	principal, err := g.lookup.LookupAPIKey(ctx, token)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, coordinatorerrors.NotAuthenticated("unknown api key")
	}
	if !principal.Active {
		return nil, coordinatorerrors.New(coordinatorerrors.ErrorCodeInactiveKey, "api key is inactive")
	}
	if !principal.HasAny(caps...) {
		return nil, coordinatorerrors.PermissionDenied(capabilityNames(caps))
	}
	return principal, nil
}

func capabilityNames(caps []Capability) string {
	if len(caps) == 0 {
		return ""
	}
	out := string(caps[0])
	for _, c := range caps[1:] {
		out += "|" + string(c)
	}
	return out
}
