// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"context"
	"strings"
	"time"
)

// User represents a registered account.
// PasswordHash is never exposed outside the auth boundary.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and fills in ID and CreatedAt.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// NormalizeEmail trims surrounding whitespace.
// Case is preserved for storage; lookups compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
