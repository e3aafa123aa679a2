// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package idgen generates the coordinator's random identifiers: api key
// tokens, jury names, and per-claim verification codes.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HexString returns a random hex string of the given byte length (so a
// string of length 2*n).
func HexString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: generate hex string: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// JuryName mints a fresh autoscaler-provisioned jury name of the form
// jury-<8 hex chars>, matching the bootstrap script's naming convention.
func JuryName() (string, error) {
	suffix, err := HexString(4)
	if err != nil {
		return "", err
	}
	return "jury-" + suffix, nil
}

// maxVerificationCode is the spec §3 upper bound (inclusive) on a job's
// verification code: drawn uniformly from [1, 1e9].
const maxVerificationCode = 1_000_000_000

// VerificationCode draws a fresh per-claim nonce uniformly from [1, 1e9].
func VerificationCode() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxVerificationCode))
	if err != nil {
		return 0, fmt.Errorf("idgen: generate verification code: %w", err)
	}
	return n.Int64() + 1, nil
}
