// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/budgetbook/budgetbook/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// maxRequestIDLen bounds client-supplied request ids.
const maxRequestIDLen = 64

// unmatchedRoute labels requests no route matched, keeping metric
// cardinality bounded.
const unmatchedRoute = "unmatched"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request-id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// trackStatus reuses an existing statusWriter so nested middleware agree.
func trackStatus(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// requestIDMiddleware assigns each request a ULID, or keeps a reasonable
// client-supplied id, and echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// loggingMiddleware logs method, path, status, and duration for every request.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := trackStatus(w)

		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// metricsMiddleware records request counts and latency per matched route.
// It relies on the mux setting r.Pattern on the same request value.
func metricsMiddleware(metrics *observability.Metrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := trackStatus(w)

		next.ServeHTTP(sw, r)

		metrics.ObserveRequest(r.Method, routeLabel(r.Pattern), sw.status, time.Since(start))
	})
}

// routeLabel strips the method from a mux pattern such as "POST /api/auth/login".
func routeLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	if pattern == "" || pattern == "/" {
		return unmatchedRoute
	}
	return pattern
}

// corsMiddleware allows the configured origins. allowed is "*" or a
// comma-separated list of origins. Preflight requests are answered here.
func corsMiddleware(allowed string, next http.Handler) http.Handler {
	wildcard, origins := parseOrigins(allowed)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		permitted := wildcard || (origin != "" && origins[origin])

		if permitted {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if permitted {
				h := w.Header()
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parseOrigins(allowed string) (wildcard bool, origins map[string]bool) {
	origins = make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			origins[o] = true
		}
	}
	return wildcard, origins
}

// recoveryMiddleware turns handler panics into the 500 envelope.
func recoveryMiddleware(logger *slog.Logger, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := trackStatus(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rec)
			}
			metrics.ObservePanic()
			logger.ErrorContext(r.Context(), "panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"stack", string(debug.Stack()),
			)
			if !sw.wroteHeader {
				writeError(sw, http.StatusInternalServerError, MsgInternal)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

// bodyLimitMiddleware caps the request body at limit bytes.
func bodyLimitMiddleware(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}
