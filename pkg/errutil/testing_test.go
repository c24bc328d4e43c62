// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/noteful/noteful-auth/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// passes
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	// passes
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertErrorContext_WrappedError(t *testing.T) {
	inner := oops.Code("USER_INSERT_FAILED").With("username", "user0").Errorf("insert")
	err := oops.With("operation", "insert user").Wrap(inner)
	errutil.AssertErrorCode(t, err, "USER_INSERT_FAILED")
	errutil.AssertErrorContext(t, err, "username", "user0")
	errutil.AssertErrorContext(t, err, "operation", "insert user")
}

// recordingT captures failures instead of stopping the test.
type recordingT struct {
	testing.TB
	failed bool
}

func (r *recordingT) Helper()               {}
func (r *recordingT) Name() string          { return "recording" }
func (r *recordingT) Errorf(string, ...any) { r.failed = true }
func (r *recordingT) FailNow()              { r.failed = true }

func TestAssertErrorCode_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil error", nil},
		{"plain error", errors.New("plain")},
		{"different code", oops.Code("OTHER").Errorf("test error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			errutil.AssertErrorCode(rec, tt.err, "MY_CODE")
			assert.True(t, rec.failed)
		})
	}
}

func TestAssertErrorContext_Failures(t *testing.T) {
	rec := &recordingT{}
	errutil.AssertErrorContext(rec, oops.With("user_id", "123").Errorf("test error"), "user_id", "456")
	assert.True(t, rec.failed, "wrong value")

	rec = &recordingT{}
	errutil.AssertErrorContext(rec, oops.Errorf("test error"), "user_id", "123")
	assert.True(t, rec.failed, "missing key")
}
