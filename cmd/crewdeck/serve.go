// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/httpapi"
	"github.com/crewdeck/crewdeck/internal/identity"
	"github.com/crewdeck/crewdeck/internal/identity/postgres"
	"github.com/crewdeck/crewdeck/internal/logging"
	"github.com/crewdeck/crewdeck/internal/observability"
	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Crewdeck server",
		Long: `Start the Crewdeck server: the authentication REST API and the
websocket gateway on one listener, plus a separate metrics/health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	// Flag names double as koanf config paths; defaults must match the
	// built-in config so an untouched flag never overrides the file.
	defaults := config.Default()
	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "HTTP listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("database.url", "", "Postgres connection URL")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().Bool("auto-migrate", false, "apply pending schema migrations on startup")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
			return store.Connect(ctx, url, logger)
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("crewdeck", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	logger.Info("starting crewdeck server",
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	if autoMigrate, _ := cmd.Flags().GetBool("auto-migrate"); autoMigrate {
		if err := runAutoMigrate(deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	tokens, err := identity.NewTokenService(identity.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return err
	}

	users := postgres.NewUserRepository(db)
	sessions := postgres.NewSessionRepository(db)
	hasher := identity.NewArgon2idHasher()

	auth, err := identity.NewService(users, sessions, hasher, tokens, logger)
	if err != nil {
		return err
	}
	resets, err := identity.NewPasswordResetService(users, hasher)
	if err != nil {
		return err
	}
	gateway, err := realtime.NewGateway(tokens, logger)
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(auth, resets, nil, logger)
	if err != nil {
		return err
	}
	guard := httpapi.NewGuard(tokens, handler.PublicPaths(), logger)
	server, err := httpapi.NewServer(cfg.HTTP.Addr, handler, guard, gateway.Handler(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.Observability.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Observability.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
			defer pingCancel()
			return db.Ping(pingCtx) == nil
		})

		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())

		wireMetrics(obsServer.Metrics(), handler, auth, gateway)
	}

	err = server.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runAutoMigrate(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}
	logger.Info("schema migrations applied")
	return nil
}

// wireMetrics connects the Prometheus metrics to the components that
// produce the events.
func wireMetrics(m *observability.Metrics, handler *httpapi.Handler, auth *identity.Service, gateway *realtime.Gateway) {
	handler.SetMetrics(authMetricsRecorder{m: m})
	auth.ObserveRefresh(func(outcome string) {
		m.RefreshesTotal.WithLabelValues(outcome).Inc()
	})
	gateway.SetObserver(gatewayRecorder{m: m})
}

// authMetricsRecorder adapts observability.Metrics to httpapi.AuthMetrics.
type authMetricsRecorder struct {
	m *observability.Metrics
}

func (r authMetricsRecorder) RecordLogin(result string) {
	r.m.LoginsTotal.WithLabelValues(result).Inc()
}

func (r authMetricsRecorder) RecordRefreshRejected() {
	r.m.RefreshesTotal.WithLabelValues("rejected").Inc()
}

// gatewayRecorder adapts observability.Metrics to realtime.Observer.
type gatewayRecorder struct {
	m *observability.Metrics
}

func (r gatewayRecorder) ConnectionOpened() {
	r.m.GatewayConnections.Inc()
}

func (r gatewayRecorder) ConnectionClosed() {
	r.m.GatewayConnections.Dec()
}

func (r gatewayRecorder) EventBroadcast(eventType string) {
	r.m.BroadcastsTotal.WithLabelValues(eventType).Inc()
}

// monitorServerErrors watches a server's error channel and cancels the
// context on failure so the whole process shuts down together.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
