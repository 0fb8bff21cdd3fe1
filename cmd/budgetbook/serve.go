// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/budgetbook/budgetbook/internal/auth"
	"github.com/budgetbook/budgetbook/internal/auth/postgres"
	"github.com/budgetbook/budgetbook/internal/config"
	"github.com/budgetbook/budgetbook/internal/httpapi"
	"github.com/budgetbook/budgetbook/internal/logging"
	"github.com/budgetbook/budgetbook/internal/observability"
	"github.com/budgetbook/budgetbook/internal/validation"
)

const (
	serviceName     = "budgetbook"
	tokenIssuer     = "budgetbook"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. Pending migrations are applied first
unless --auto-migrate=false. Metrics and health probes are served on
--metrics-addr when it is not empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the API until ctx is cancelled, a termination
// signal arrives, or a server fails. If deps is nil, defaults are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}

	logger := logging.SetDefault(serviceName, version, cfg.LogFormat)

	secret, insecure := cfg.Secret()
	if insecure {
		logger.Warn("using the built-in JWT secret; set JWT_SECRET before exposing this server")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The probe server comes up before migrations so liveness answers while
	// the schema is being updated; readiness waits for them.
	var migrated atomic.Bool
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, func(ctx context.Context) bool {
			return migrated.Load() && db.Ping(ctx) == nil
		})
		auth.RegisterMetrics(obsServer.Registry())
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		defer stopServer(obsServer.Stop, "observability")
	}

	if cfg.AutoMigrate {
		if err := autoMigrate(deps, cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}
	migrated.Store(true)

	hasher, err := auth.NewBcryptHasher(cfg.BcryptRounds)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: secret, TTL: ttl, Issuer: tokenIssuer})
	if err != nil {
		return err
	}
	service, err := auth.NewServiceWithLogger(postgres.NewUserRepository(db), hasher, tokens, logger)
	if err != nil {
		return err
	}
	requests, err := validation.NewRequests()
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(service, requests, db, httpapi.WithLogger(logger))
	mux := httpapi.NewServeMux(handler, auth.NewGuard(tokens, logger), httpapi.Options{
		Logger:     logger,
		Metrics:    metrics,
		CORSOrigin: cfg.CORSOrigin,
	})

	listener, err := deps.ListenerFactory("tcp", cfg.ListenAddr())
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.ListenAddr()).Wrap(err)
	}
	apiServer := httpapi.NewServer(listener.Addr().String(), mux)

	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	cmd.Println("API server started")
	logger.Info("api server listening",
		"addr", listener.Addr().String(),
		"token_ttl", ttl.String(),
		"bcrypt_rounds", hasher.Cost(),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-apiErrCh:
		if ok {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}

	stopServer(apiServer.Shutdown, "api")
	logger.Info("shutdown complete")
	return serveErr
}

// autoMigrate applies pending migrations before the API accepts traffic.
func autoMigrate(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	schemaVersion, _, err := migrator.Version()
	if err != nil {
		logger.Warn("could not read schema version", "error", err)
		return nil
	}
	logger.Info("database schema up to date", "version", schemaVersion)
	return nil
}

// monitorServerErrors cancels ctx if a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// stopServer runs a graceful shutdown bounded by shutdownTimeout.
func stopServer(shutdown func(context.Context) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}
