// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package httpapi exposes the authentication API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/budgetbook/budgetbook/internal/auth"
	"github.com/budgetbook/budgetbook/internal/validation"
	"github.com/budgetbook/budgetbook/pkg/errutil"
)

// healthTimeout bounds the database ping behind GET /api/health.
const healthTimeout = 2 * time.Second

// AuthService is the subset of auth.Service the handlers need.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	CurrentUser(ctx context.Context, userID int64) (*auth.User, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API endpoints.
type Handler struct {
	auth     AuthService
	requests *validation.Requests
	db       Pinger
	logger   *slog.Logger
	now      func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger used for unexpected errors.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the clock used for health timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a Handler. A nil db makes the health check always pass.
func NewHandler(svc AuthService, requests *validation.Requests, db Pinger, opts ...HandlerOption) *Handler {
	h := &Handler{
		auth:     svc,
		requests: requests,
		db:       db,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req := h.requests.Register.Decode(body)
	if !req.OK() {
		writeValidation(w, req.Errors)
		return
	}

	user, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Value.Email,
		Password: req.Value.Password,
		Name:     req.Value.Name,
	})
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusBadRequest, MsgEmailExists)
		return
	case err != nil:
		h.internalError(w, r, "registration failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		User: registeredUser{
			ID:        user.ID,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req := h.requests.Login.Decode(body)
	if !req.OK() {
		writeValidation(w, req.Errors)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Value.Email, req.Value.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, MsgBadCredentials)
		return
	case err != nil:
		h.internalError(w, r, "login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   result.Token,
		User:    loginUser{ID: result.User.ID, Email: result.User.Email},
	})
}

// Me handles GET /api/auth/me. It must run behind auth.Guard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.MsgTokenRequired)
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), id.UserID)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, MsgUserNotFound)
		return
	case err != nil:
		h.internalError(w, r, "current user lookup failed", err,
			"user_id", id.UserID)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{Success: true, User: newProfile(user)})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	timestamp := h.now().UTC().Format(time.RFC3339)

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Timestamp: timestamp})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: timestamp})
}

// NotFound answers unrouted requests with the failure envelope.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, MsgNotFound)
}

// readBody reads the request body, writing the failure response itself
// when it returns false.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return nil, false
	}
	writeValidation(w, []validation.FieldError{{Field: validation.BodyField, Message: "Unreadable request body"}})
	return nil, false
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", RequestIDFromContext(r.Context()))
	errutil.LogError(r.Context(), h.logger, msg, err, attrs...)
	writeError(w, http.StatusInternalServerError, MsgInternal)
}
