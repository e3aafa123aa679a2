// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrMissingDatabaseURI is returned when DATABASE_URI is not set.
	ErrMissingDatabaseURI = errors.New("DATABASE_URI is required")

	// ErrMissingSecretKey is returned when no secret key could be loaded or generated.
	ErrMissingSecretKey = errors.New("secret key could not be loaded or generated")

	// ErrInvalidStaleClaimWindow is returned when the stale-claim window is not positive.
	ErrInvalidStaleClaimWindow = errors.New("stale claim window must be greater than 0")
)
