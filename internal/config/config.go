// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

// Package config loads server configuration from defaults, an optional
// YAML file, command-line flags, and environment fallbacks for secrets.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	flag "github.com/spf13/pflag"
)

// Config is the full server configuration.
type Config struct {
	HTTP          HTTPConfig          `koanf:"http"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Auth          AuthConfig          `koanf:"auth"`
	Log           LogConfig           `koanf:"log"`
}

// HTTPConfig configures the REST and websocket listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// ObservabilityConfig configures the metrics and health listener.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig configures token signing. The two secrets must differ; the
// token service rejects a shared secret outright.
type AuthConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
}

// LogConfig configures log output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:          HTTPConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: ":9090"},
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Environment fallbacks, consulted only when the file and flags leave the
// corresponding value empty. Secrets normally arrive this way so they stay
// out of config files.
const (
	EnvDatabaseURL   = "CREWDECK_DATABASE_URL"
	EnvAccessSecret  = "CREWDECK_ACCESS_SECRET"
	EnvRefreshSecret = "CREWDECK_REFRESH_SECRET"
)

// Load builds the configuration in precedence order: defaults, then the
// YAML file at path (skipped when path is empty), then the given flag set,
// then environment fallbacks for values still unset. flags may be nil.
func Load(path string, flags *flag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.Auth.AccessSecret == "" {
		cfg.Auth.AccessSecret = os.Getenv(EnvAccessSecret)
	}
	if cfg.Auth.RefreshSecret == "" {
		cfg.Auth.RefreshSecret = os.Getenv(EnvRefreshSecret)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks for values the server cannot start without.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr cannot be empty")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvDatabaseURL).
			Errorf("database.url is required")
	}
	if c.Auth.AccessSecret == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvAccessSecret).
			Errorf("auth.access_secret is required")
	}
	if c.Auth.RefreshSecret == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvRefreshSecret).
			Errorf("auth.refresh_secret is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return oops.Code("CONFIG_INVALID").
			Errorf("auth.access_secret and auth.refresh_secret must differ")
	}
	return nil
}
