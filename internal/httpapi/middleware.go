// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

// Package httpapi provides the JSON REST surface for authentication and
// the route guard that protects it.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crewdeck/crewdeck/internal/identity"
)

// TokenVerifier validates an access token into a Principal. Implemented
// by identity.TokenService.
type TokenVerifier interface {
	VerifyAccess(token string) (identity.Principal, error)
}

type principalContextKey struct{}

// PrincipalFrom returns the verified Principal attached to the request
// context by the route guard.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(identity.Principal)
	return principal, ok
}

// Guard is the route guard. Every route is protected unless its path is
// named in the public set; there is no pattern matching and no implicit
// bypass. The guard is stateless: it trusts the token signature and
// expiry alone and never consults the session ledger.
type Guard struct {
	verifier TokenVerifier
	public   map[string]struct{}
	logger   *slog.Logger
}

// NewGuard creates a Guard with the given public paths.
func NewGuard(verifier TokenVerifier, publicPaths []string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	public := make(map[string]struct{}, len(publicPaths))
	for _, path := range publicPaths {
		public[path] = struct{}{}
	}
	return &Guard{
		verifier: verifier,
		public:   public,
		logger:   logger,
	}
}

// Middleware wraps a handler with the guard.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.public[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		principal, err := g.verifier.VerifyAccess(token)
		if err != nil {
			g.logger.Debug("route guard rejected token",
				"path", r.URL.Path,
				"error", err,
			)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// writeUnauthorized answers every guard rejection identically so callers
// cannot probe which check failed.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`)) //nolint:errcheck // Client may disconnect
}
