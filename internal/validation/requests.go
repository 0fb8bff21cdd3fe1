// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package validation

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// EmailPattern is the pattern on every email field. It requires a dot in
// the domain, which format=email alone does not, so "a@b" is rejected.
// Struct tags cannot reference it; keep them in sync.
const EmailPattern = `^[^@]+@[^@]+[.][^@]+$`

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" jsonschema:"format=email,pattern=^[^@]+@[^@]+[.][^@]+$,maxLength=255"`
	Password string `json:"password" jsonschema:"minLength=6"`
	Name     string `json:"name,omitempty" jsonschema:"maxLength=255"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" jsonschema:"format=email,pattern=^[^@]+@[^@]+[.][^@]+$"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// Requests holds the compiled schemas for every request body the API accepts.
type Requests struct {
	Register *Schema[RegisterRequest]
	Login    *Schema[LoginRequest]
}

// NewRequests compiles the request schemas.
func NewRequests() (*Requests, error) {
	register, err := NewSchema[RegisterRequest]("register-request", "BudgetBook register request")
	if err != nil {
		return nil, err
	}
	login, err := NewSchema[LoginRequest]("login-request", "BudgetBook login request")
	if err != nil {
		return nil, err
	}
	return &Requests{Register: register, Login: login}, nil
}

// Documents returns each schema document keyed by schema name.
func (r *Requests) Documents() map[string][]byte {
	return map[string][]byte{
		r.Register.Name(): r.Register.Document(),
		r.Login.Name():    r.Login.Document(),
	}
}
