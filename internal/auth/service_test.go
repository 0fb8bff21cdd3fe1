// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/budgetbook/budgetbook/internal/auth"
	"github.com/budgetbook/budgetbook/internal/auth/mocks"
	"github.com/budgetbook/budgetbook/pkg/errutil"
)

func TestNewService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		tokens      auth.TokenIssuer
		expectError string
	}{
		{
			name:        "nil user repository",
			users:       nil,
			hasher:      mocks.NewMockPasswordHasher(t),
			tokens:      mocks.NewMockTokenIssuer(t),
			expectError: "user repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			hasher:      nil,
			tokens:      mocks.NewMockTokenIssuer(t),
			expectError: "password hasher is required",
		},
		{
			name:        "nil token issuer",
			users:       mocks.NewMockUserRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			tokens:      nil,
			expectError: "token issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.hasher, tt.tokens)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_SERVICE")
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewServiceWithLogger(
		mocks.NewMockUserRepository(t),
		mocks.NewMockPasswordHasher(t),
		mocks.NewMockTokenIssuer(t),
		nil,
	)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

type serviceFixture struct {
	users  *mocks.MockUserRepository
	hasher *mocks.MockPasswordHasher
	tokens *mocks.MockTokenIssuer
	svc    *auth.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:  mocks.NewMockUserRepository(t),
		hasher: mocks.NewMockPasswordHasher(t),
		tokens: mocks.NewMockTokenIssuer(t),
	}
	svc, err := auth.NewService(f.users, f.hasher, f.tokens)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("creates user with hashed password", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("$2a$10$hash", nil)
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.Email == "a@b.com" && u.PasswordHash == "$2a$10$hash" && u.Name == "Alice"
		})).Run(func(args mock.Arguments) {
			u := args.Get(1).(*auth.User)
			u.ID = 1
			u.CreatedAt = createdAt
		}).Return(nil)

		user, err := f.svc.Register(ctx, auth.RegisterInput{Email: " a@b.com ", Password: "secret1", Name: " Alice "})
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "a@b.com", user.Email)
		assert.Equal(t, createdAt, user.CreatedAt)
	})

	t.Run("existing email fails without hashing", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(&auth.User{ID: 1, Email: "a@b.com"}, nil)

		user, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@b.com", Password: "secret1"})
		require.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrEmailExists)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_EXISTS")
		f.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("unique violation on insert maps to email exists", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("$2a$10$hash", nil)
		f.users.On("Create", mock.Anything, mock.Anything).Return(auth.ErrEmailExists)

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@b.com", Password: "secret1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrEmailExists)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_EXISTS")
	})

	t.Run("lookup failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, errors.New("connection refused"))

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@b.com", Password: "secret1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrEmailExists)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "check existing email")
	})

	t.Run("hash failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("", errors.New("entropy exhausted"))

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@b.com", Password: "secret1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "hash password")
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("insert failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("$2a$10$hash", nil)
		f.users.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "a@b.com", Password: "secret1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "create user")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{ID: 7, Email: "a@b.com", PasswordHash: "$2a$10$realhash"}

	t.Run("valid credentials issue token", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(user, nil)
		f.hasher.On("Verify", "secret1", user.PasswordHash).Return(true)
		f.tokens.On("Issue", int64(7)).Return("signed.jwt.token", nil)

		result, err := f.svc.Login(ctx, "a@b.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "signed.jwt.token", result.Token)
		assert.Equal(t, int64(7), result.User.ID)
	})

	t.Run("wrong password returns invalid credentials", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(user, nil)
		f.hasher.On("Verify", "wrong", user.PasswordHash).Return(false)

		result, err := f.svc.Login(ctx, "a@b.com", "wrong")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		f.tokens.AssertNotCalled(t, "Issue", mock.Anything)
	})

	t.Run("unknown email still verifies against dummy hash", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ghost@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", mock.AnythingOfType("string")).Return("$2a$10$dummyhash", nil).Once()
		f.hasher.On("Verify", "secret1", "$2a$10$dummyhash").Return(false).Twice()

		for range 2 {
			result, err := f.svc.Login(ctx, "ghost@b.com", "secret1")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		}
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "ghost@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", mock.AnythingOfType("string")).Return("$2a$10$dummyhash", nil)
		f.hasher.On("Verify", mock.Anything, mock.Anything).Return(false)

		_, errWrong := f.svc.Login(ctx, "a@b.com", "nope")
		_, errUnknown := f.svc.Login(ctx, "ghost@b.com", "nope")
		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("dummy hash failure falls back and still rejects", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ghost@b.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", mock.AnythingOfType("string")).Return("", errors.New("boom"))
		f.hasher.On("Verify", "secret1", mock.AnythingOfType("string")).Return(false)

		_, err := f.svc.Login(ctx, "ghost@b.com", "secret1")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("repository failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, errors.New("timeout"))

		_, err := f.svc.Login(ctx, "a@b.com", "secret1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		f.hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("token failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(user, nil)
		f.hasher.On("Verify", "secret1", user.PasswordHash).Return(true)
		f.tokens.On("Issue", int64(7)).Return("", errors.New("signing failed"))

		_, err := f.svc.Login(ctx, "a@b.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "issue token")
	})
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("returns user", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByID", mock.Anything, int64(3)).Return(&auth.User{ID: 3, Email: "c@d.com", Name: "Cee"}, nil)

		user, err := f.svc.CurrentUser(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Cee", user.Name)
	})

	t.Run("deleted user is not found", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByID", mock.Anything, int64(3)).Return(nil, auth.ErrNotFound)

		_, err := f.svc.CurrentUser(ctx, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("repository failure is unexpected", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByID", mock.Anything, int64(3)).Return(nil, errors.New("connection reset"))

		_, err := f.svc.CurrentUser(ctx, 3)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "AUTH_CURRENT_USER_FAILED")
	})
}

func TestService_LogsRegistrationWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewServiceWithLogger(users, hasher, mocks.NewMockTokenIssuer(t), logger)
	require.NoError(t, err)

	users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, auth.ErrNotFound)
	hasher.On("Hash", "topsecret").Return("$2a$10$storedhash", nil)
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*auth.User).ID = 11
	}).Return(nil)

	_, err = svc.Register(context.Background(), auth.RegisterInput{Email: "a@b.com", Password: "topsecret"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "user registered")
	assert.Contains(t, out, `"user_id":11`)
	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "storedhash")
}
