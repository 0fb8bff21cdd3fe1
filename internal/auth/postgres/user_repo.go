// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/budgetbook/budgetbook/internal/auth"
)

// Querier is the part of *pgxpool.Pool the repositories need.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, email, COALESCE(name, ''), password_hash, created_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user and fills in the database-assigned ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	var name *string
	if user.Name != "" {
		name = &user.Name
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, user.Email, name, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EMAIL_EXISTS").
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrEmailExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", strconv.FormatInt(id, 10)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", strconv.FormatInt(id, 10)).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// scanUser scans a single row selected with userColumns.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var user auth.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
