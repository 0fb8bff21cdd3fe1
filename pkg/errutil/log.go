// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level with structured context if it's an oops
// error. For oops errors, it extracts and logs the message, code, and
// context. For standard errors, it logs the error string. Extra attrs are
// appended after the error attributes.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	if oopsErr, ok := oops.AsOops(err); ok {
		fields := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			fields = append(fields, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			fields = append(fields, "context", errCtx)
		}
		logger.ErrorContext(ctx, msg, append(fields, attrs...)...)
		return
	}
	logger.ErrorContext(ctx, msg, append([]any{"error", err}, attrs...)...)
}
