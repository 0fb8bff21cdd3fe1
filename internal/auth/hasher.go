// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcrypt only consumes the first 72 bytes of its input.
const maxPasswordBytes = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the hash.
	// Malformed hashes report false.
	Verify(password, hash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given work factor.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword(clampPassword(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("cost", h.cost).Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the hash.
// The comparison is constant-time within bcrypt.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), clampPassword(password)) == nil
}

// clampPassword truncates to the bytes bcrypt actually reads so that long
// passwords hash and verify identically instead of failing with
// bcrypt.ErrPasswordTooLong.
func clampPassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

// Compile-time interface check.
var _ PasswordHasher = (*BcryptHasher)(nil)
