// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Rejection messages written by the Guard.
const (
	MsgTokenRequired = "Access token required"
	MsgTokenInvalid  = "Invalid or expired token"
)

// ContentTypeJSON is the Content-Type of every JSON response body.
const ContentTypeJSON = "application/json; charset=utf-8"

const bearerPrefix = "Bearer "

// identityKey is the context key for the authenticated Identity.
type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the Identity attached by the Guard.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Guard is HTTP middleware that admits only requests with a valid bearer token.
type Guard struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewGuard creates a Guard backed by verifier.
// If logger is nil, slog.Default() is used.
func NewGuard(verifier TokenVerifier, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{verifier: verifier, logger: logger}
}

// Require wraps next so it only runs for authenticated requests.
// Missing and invalid tokens both produce 401; only the message differs.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			recordTokenVerification(ResultMissing)
			writeUnauthorized(w, MsgTokenRequired)
			return
		}

		id, ok := g.verifier.Verify(token)
		if !ok {
			recordTokenVerification(ResultInvalid)
			g.logger.DebugContext(r.Context(), "bearer token rejected",
				"method", r.Method,
				"path", r.URL.Path)
			writeUnauthorized(w, MsgTokenInvalid)
			return
		}

		recordTokenVerification(ResultSuccess)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" value.
func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.Header().Set("WWW-Authenticate", `Bearer realm="budgetbook"`)
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: false, Message: message})
}
