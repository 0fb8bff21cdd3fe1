// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/budgetbook/budgetbook/internal/auth"
	"github.com/budgetbook/budgetbook/internal/observability"
)

// Options configures the middleware around the API routes.
type Options struct {
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	CORSOrigin   string
	MaxBodyBytes int64
}

// NewServeMux registers the API routes and wraps them with middleware.
// Order, outermost first: request id, logging, metrics, CORS, recovery,
// body limit.
func NewServeMux(h *Handler, guard *auth.Guard, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.Handle("GET /api/auth/me", guard.Require(http.HandlerFunc(h.Me)))
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("/", h.NotFound)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(limit, handler)
	handler = recoveryMiddleware(logger, opts.Metrics, handler)
	handler = corsMiddleware(opts.CORSOrigin, handler)
	handler = metricsMiddleware(opts.Metrics, handler)
	handler = loggingMiddleware(logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// NewServer returns an http.Server for handler with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
