// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package httpapi

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetbook/budgetbook/internal/observability"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates a ulid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(RequestIDHeader)
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("keeps client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "trace-abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "trace-abc", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "trace-abc", seen)
	})

	t.Run("replaces oversized client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, string(bytes.Repeat([]byte("a"), maxRequestIDLen+1)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(RequestIDHeader), 26)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := requestIDMiddleware(loggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := logs.String()
	assert.Contains(t, out, `"msg":"http request"`)
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, `"path":"/api/auth/login"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"request_id":"req-1"`)
}

func TestStatusWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := trackStatus(rec)
	_, err := sw.Write([]byte("hi"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, sw.status)
	assert.True(t, sw.wroteHeader)
	assert.Same(t, sw, trackStatus(sw))
}

func TestCORSMiddleware(t *testing.T) {
	preflight := func(handler http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("wildcard", func(t *testing.T) {
		handler := corsMiddleware("*", http.HandlerFunc(okHandler))
		rec := preflight(handler, "http://localhost:5173")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("listed origin is echoed", func(t *testing.T) {
		handler := corsMiddleware("https://app.example.com, http://localhost:5173/", http.HandlerFunc(okHandler))
		rec := preflight(handler, "http://localhost:5173")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("unlisted origin gets no grant", func(t *testing.T) {
		handler := corsMiddleware("https://app.example.com", http.HandlerFunc(okHandler))
		rec := preflight(handler, "https://evil.example.com")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("simple request passes through", func(t *testing.T) {
		handler := corsMiddleware("*", http.HandlerFunc(okHandler))
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	t.Run("panic before write", func(t *testing.T) {
		handler := recoveryMiddleware(logger, metrics, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, rec.Body.String())
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.Panics), 0)
		assert.Contains(t, logs.String(), "panic recovered")
	})

	t.Run("panic after write keeps the original status", func(t *testing.T) {
		handler := recoveryMiddleware(logger, nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("late")
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		handler := recoveryMiddleware(logger, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestMetricsMiddleware_RouteLabels(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", okHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	handler := metricsMiddleware(metrics, mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/1", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/2", nil))

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("POST", "/api/auth/login", "200")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")), 0)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/auth/me", routeLabel("GET /api/auth/me"))
	assert.Equal(t, "/api/health", routeLabel("/api/health"))
	assert.Equal(t, unmatchedRoute, routeLabel(""))
	assert.Equal(t, unmatchedRoute, routeLabel("/"))
}

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	handler := bodyLimitMiddleware(4, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		_, readErr = r.Body.Read(buf)
		if readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("too long"))))

	var tooLarge *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooLarge)
}
