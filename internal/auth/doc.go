// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package auth provides authentication primitives for BudgetBook.
//
// # Primitives
//
// Three components carry the security contracts of the service:
//   - BcryptHasher - salted, adaptive password hashing and verification
//   - TokenService - issues and verifies signed, time-limited bearer tokens
//   - Guard - HTTP middleware that admits requests carrying a valid bearer token
//
// # Services
//
// Service coordinates registration, login and current-user lookup on top of a
// UserRepository. It is created with NewService, which validates dependencies.
//
// Login deliberately collapses "unknown email" and "wrong password" into
// ErrInvalidCredentials, and TokenService.Verify collapses every token failure
// into a single false result.
package auth
