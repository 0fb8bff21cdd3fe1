// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package main

import (
	"context"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/budgetbook/budgetbook/internal/auth/postgres"
	"github.com/budgetbook/budgetbook/internal/observability"
	"github.com/budgetbook/budgetbook/internal/store"
)

// Database is the part of *pgxpool.Pool the server uses.
type Database interface {
	postgres.Querier
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() prometheus.Registerer
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect with store.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, url string) (Database, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseFactory == nil {
		out.DatabaseFactory = func(ctx context.Context, url string) (Database, error) {
			pool, err := store.Connect(ctx, url, store.DefaultConnectOptions())
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newStoreMigrator
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

func newStoreMigrator(url string) (Migrator, error) {
	m, err := store.NewMigrator(url)
	if err != nil {
		return nil, err
	}
	return m, nil
}
