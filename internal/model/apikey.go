// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

import "github.com/easyctf/judge-coordinator/pkg/auth"

// MaxAPIKeyNameLength is the spec §6 limit on an api key's display name.
const MaxAPIKeyNameLength = 16

// APIKeyLength is the byte length of the random token backing an APIKey.Key.
const APIKeyLength = 16

// APIKey is an opaque bearer token carrying three independent capability
// flags. Keys are append-only from the core's perspective: only the
// operator CLI issues master keys, and the web-facing endpoint never does.
type APIKey struct {
	ID         int64
	Active     bool
	Name       *string
	Key        string
	PermJury   bool
	PermReader bool
	PermMaster bool
}

// Principal adapts the stored key into the capability-check view pkg/auth
// operates on.
func (k *APIKey) Principal() *auth.Principal {
	name := ""
	if k.Name != nil {
		name = *k.Name
	}
	return &auth.Principal{
		Name:       name,
		Active:     k.Active,
		PermJury:   k.PermJury,
		PermReader: k.PermReader,
		PermMaster: k.PermMaster,
	}
}
