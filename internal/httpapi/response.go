// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/budgetbook/budgetbook/internal/auth"
	"github.com/budgetbook/budgetbook/internal/validation"
)

// Client-facing failure messages.
const (
	MsgValidation     = "Validation error"
	MsgEmailExists    = "Email already exists"
	MsgBadCredentials = "Invalid email or password"
	MsgUserNotFound   = "User not found"
	MsgInternal       = "Internal server error"
	MsgNotFound       = "Not found"
	MsgBodyTooLarge   = "Request body too large"
)

type errorResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

type registeredUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type registerResponse struct {
	Success bool           `json:"success"`
	User    registeredUser `json:"user"`
}

type loginUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

// profile is the current-user view. Name is null when never set.
type profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type meResponse struct {
	Success bool    `json:"success"`
	User    profile `json:"user"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func newProfile(u *auth.User) profile {
	p := profile{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
	if u.Name != "" {
		name := u.Name
		p.Name = &name
	}
	return p
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", auth.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes the failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

func writeValidation(w http.ResponseWriter, errs []validation.FieldError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Success: false,
		Message: MsgValidation,
		Errors:  errs,
	})
}
