// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that already has an account.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid email or password")
