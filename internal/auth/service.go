// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/budgetbook/budgetbook/internal/auth"

// fallbackDummyHash is only used if hashing the random dummy password fails.
//
//nolint:gosec // G101: not a credential, never matches any password
const fallbackDummyHash = "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinvali"

// RegisterInput is the validated payload of a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  *User
}

// Service provides registration, login and current-user lookup.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
	tracer trace.Tracer

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new Service using slog.Default().
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Register creates a new account.
// The email pre-check runs before the password is hashed; the repository's
// unique constraint remains the final authority for concurrent registrations.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	email := NormalizeEmail(in.Email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		recordRegistration(ResultConflict)
		return nil, oops.Code("AUTH_EMAIL_EXISTS").Wrap(ErrEmailExists)
	case !errors.Is(err, ErrNotFound):
		recordRegistration(ResultError)
		return nil, failSpan(span, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing email").
			Wrap(err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		recordRegistration(ResultError)
		return nil, failSpan(span, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	user := &User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			recordRegistration(ResultConflict)
			return nil, oops.Code("AUTH_EMAIL_EXISTS").Wrap(err)
		}
		recordRegistration(ResultError)
		return nil, failSpan(span, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err))
	}

	recordRegistration(ResultSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates by email and password and issues a bearer token.
// Unknown emails are verified against a dummy hash so that response time
// does not reveal whether an account exists.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))

	var targetHash string
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			recordLogin(ResultError)
			return nil, failSpan(span, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr))
		}
		targetHash = s.dummy()
	} else {
		targetHash = user.PasswordHash
	}

	valid := s.hasher.Verify(password, targetHash)
	if lookupErr != nil || !valid {
		recordLogin(ResultInvalid)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		recordLogin(ResultError)
		return nil, failSpan(span, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err))
	}

	recordLogin(ResultSuccess)
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{Token: token, User: user}, nil
}

// CurrentUser returns the account behind an authenticated identity.
// Tokens outlive deleted accounts, so ErrNotFound is an expected outcome.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.CurrentUser")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(err)
		}
		return nil, failSpan(span, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err))
	}
	return user, nil
}

// dummy returns a hash produced with the configured hasher for a random
// password, so the timing of a miss matches a real verification.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(rand.Text())
		if err != nil {
			s.logger.Warn("failed to compute dummy password hash", "error", err)
			hash = fallbackDummyHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "unexpected error")
	return err
}
