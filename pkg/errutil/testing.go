// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package errutil

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test immediately unless err carries oops context.
func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	AssertErrorFields(t, err, map[string]any{key: value})
}

// AssertErrorFields asserts every key/value in fields is present in the
// oops context of err. Missing keys are reported together.
func AssertErrorFields(t *testing.T, err error, fields map[string]any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	for key, want := range fields {
		got, ok := ctx[key]
		if !assert.True(t, ok, "missing error context key %q", key) {
			continue
		}
		assert.Equal(t, want, got, "error context key %q", key)
	}
}

// AssertCodedSentinel asserts err carries code and still matches target
// with errors.Is, which is what HTTP status mapping relies on.
func AssertCodedSentinel(t *testing.T, err error, code string, target error) {
	t.Helper()
	AssertErrorCode(t, err, code)
	assert.True(t, errors.Is(err, target), "expected %v in chain of %v", target, err)
}
