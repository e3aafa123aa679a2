// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package autoscaler

import "context"

// Cloud abstracts the autoscaler's jury provisioning backend, letting the
// tick loop be tested against a fake instead of a live provider.
type Cloud interface {
	// CurrentCount reports how many jury instances the provider currently
	// has tagged, independent of the controller's own belief.
	CurrentCount(ctx context.Context) (int, error)

	// Create provisions n new juries: each gets a fresh name, a fresh
	// perm_jury API key, and a bootstrap script binding the two together.
	Create(ctx context.Context, n int) error

	// Destroy tears down up to n juries, chosen arbitrarily from the
	// tagged set, and returns how many were actually destroyed (which may
	// be fewer than requested).
	Destroy(ctx context.Context, n int) (int, error)
}

// KeyIssuer mints the perm_jury API key handed to each new jury's bootstrap
// script. Implemented by internal/engine or a thin store-backed adapter.
type KeyIssuer interface {
	IssueJuryKey(ctx context.Context, name string) (string, error)
}
