// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package store provides PostgreSQL connectivity and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how Connect waits for the database.
type ConnectOptions struct {
	// MaxRetries is the number of ping retries after the first attempt.
	MaxRetries uint64
	// InitialBackoff is the first retry delay; it doubles on each attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration
	// MaxConns overrides the pool size when positive.
	MaxConns int32
}

// DefaultConnectOptions waits roughly half a minute for the database to come up.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxRetries:     8,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// pinger is the part of *pgxpool.Pool used to check connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool for databaseURL and pings it until it answers
// or the retry budget is exhausted.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitForDatabase pings p with exponential backoff.
func waitForDatabase(ctx context.Context, p pinger, opts ConnectOptions) error {
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	backoff := retry.NewExponential(initial)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(opts.MaxRetries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := p.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
