// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/easyctf/judge-coordinator/internal/idgen"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	coordinatorerrors "github.com/easyctf/judge-coordinator/pkg/errors"
)

// IssueAPIKey mints and persists a new opaque API key with the given name
// and capability flags. Never sets PermMaster; master keys are issued only
// by the operator CLI, which writes to the store directly (spec §12).
func (e *Engine) IssueAPIKey(ctx context.Context, name string, jury, reader bool) (*model.APIKey, error) {
	if len(name) > model.MaxAPIKeyNameLength {
		return nil, coordinatorerrors.Malformed("name exceeds max length").
			WithDetails(fmt.Sprintf("name=%q max=%d", name, model.MaxAPIKeyNameLength))
	}
	key, err := idgen.HexString(model.APIKeyLength)
	if err != nil {
		return nil, fmt.Errorf("engine: issue api key: %w", err)
	}

	apiKey := &model.APIKey{
		Name:       &name,
		Key:        key,
		PermJury:   jury,
		PermReader: reader,
	}
	if err := e.store.APIKeys().Create(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("engine: issue api key: %w", err)
	}
	return apiKey, nil
}

// IssueJuryKey mints a perm_jury-only API key for an autoscaler-provisioned
// jury, implementing autoscaler.KeyIssuer.
func (e *Engine) IssueJuryKey(ctx context.Context, name string) (string, error) {
	apiKey, err := e.IssueAPIKey(ctx, name, true, false)
	if err != nil {
		return "", err
	}
	return apiKey.Key, nil
}

// LookupAPIKey implements auth.KeyLookup, resolving a bearer token to its
// capability principal. An unknown token is reported as a nil principal
// with no error, per auth.Guard's contract, rather than propagating the
// store's ErrNotFound.
func (e *Engine) LookupAPIKey(ctx context.Context, token string) (*auth.Principal, error) {
	key, err := e.store.APIKeys().Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return key.Principal(), nil
}
