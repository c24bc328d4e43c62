// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err is an oops error carrying code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected an error with code %s", code)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, Code(err), "unexpected code on %v", err)
}

// AssertErrorContext fails t unless err carries key=value in its oops
// context. Context from wrapped oops errors counts.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	require.Error(t, err, "expected an error with context %s", key)
	got, ok := ContextValue(err, key)
	require.True(t, ok, "context key %q missing from %v", key, err)
	assert.Equal(t, value, got, "context key %q", key)
}
