// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package testsupport provides small testify-backed assertion helpers shared
// across the coordinator's package-level tests.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContext returns a test context bounded by a generous timeout.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	assert.NoError(t, err)
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

// AssertEqual is a helper for equality assertions.
func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	assert.Equal(t, expected, actual)
}

// RequireEqual is a helper for equality assertions that fails immediately.
func RequireEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	require.Equal(t, expected, actual)
}

// AssertNotNil is a helper for nil checks.
func AssertNotNil(t *testing.T, obj interface{}) {
	t.Helper()
	assert.NotNil(t, obj)
}

// RequireNotNil is a helper for nil checks that fails immediately.
func RequireNotNil(t *testing.T, obj interface{}) {
	t.Helper()
	require.NotNil(t, obj)
}

// AssertWithinDuration asserts two times are within the given tolerance,
// used for comparing POSIX-second-truncated timestamps across a round trip.
func AssertWithinDuration(t *testing.T, expected, actual time.Time, tolerance time.Duration) {
	t.Helper()
	assert.WithinDuration(t, expected, actual, tolerance)
}

// IntPtr returns a pointer to an int value.
func IntPtr(v int) *int { return &v }

// Int32Ptr returns a pointer to an int32 value.
func Int32Ptr(v int32) *int32 { return &v }

// Int64Ptr returns a pointer to an int64 value.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to a float64 value.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr returns a pointer to a string value.
func StringPtr(v string) *string { return &v }

// BoolPtr returns a pointer to a bool value.
func BoolPtr(v bool) *bool { return &v }
