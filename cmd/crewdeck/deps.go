// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/crewdeck/crewdeck/internal/identity/postgres"
	"github.com/crewdeck/crewdeck/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All nil fields fall back to their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the Postgres pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, logger *slog.Logger) (Database, error)

	// MigratorFactory creates a schema migrator for --auto-migrate.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Database is the connection pool surface serve needs, satisfied by
// *pgxpool.Pool.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator wraps the migrator methods the serve command uses.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
