// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Principal is the verified identity attached to an authenticated request
// or connection. It is produced only by TokenService from a verified token
// and is never trusted from unvalidated client input.
type Principal struct {
	UserID      ulid.ULID
	Username    string
	DisplayName string
	Role        Role
	SessionID   ulid.ULID
}

// TokenPair is the access/refresh pair minted on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// tokenClaims is the wire claim set. Field names are fixed for
// compatibility with existing clients.
type tokenClaims struct {
	Username    string `json:"una"`
	DisplayName string `json:"dna"`
	Role        string `json:"rol"`
	SessionID   string `json:"ses"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService. Zero TTLs fall back to the
// package defaults.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues and verifies signed access and refresh tokens.
// Issuance and verification are pure and safe for concurrent use.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService creates a TokenService. Both secrets are required; the
// refresh secret must differ from the access secret so that one token kind
// can never stand in for the other.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh secret is required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// IssuePair mints a fresh access/refresh pair for the user, both carrying
// the session id. Issued/expiry claims are always derived from the current
// time, never copied from a prior token.
func (ts *TokenService) IssuePair(user *User, sessionID ulid.ULID) (TokenPair, error) {
	access, err := ts.sign(user, sessionID, ts.accessSecret, ts.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := ts.sign(user, sessionID, ts.refreshSecret, ts.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess verifies an access token's signature and expiry and decodes
// its Principal.
func (ts *TokenService) VerifyAccess(token string) (Principal, error) {
	return ts.verify(token, ts.accessSecret)
}

// VerifyRefresh verifies a refresh token's signature and expiry and decodes
// its Principal.
func (ts *TokenService) VerifyRefresh(token string) (Principal, error) {
	return ts.verify(token, ts.refreshSecret)
}

func (ts *TokenService) sign(user *User, sessionID ulid.ULID, secret []byte, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := tokenClaims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		SessionID:   sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return signed, nil
}

// verify parses and validates a token. Every failure collapses into the
// same TOKEN_INVALID error so callers cannot tell which check rejected it.
func (ts *TokenService) verify(token string, secret []byte) (Principal, error) {
	invalid := func(err error) (Principal, error) {
		return Principal{}, oops.Code("TOKEN_INVALID").
			Wrap(err)
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(_ *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return invalid(err)
	}
	if !parsed.Valid {
		return invalid(oops.Errorf("token rejected"))
	}

	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return invalid(err)
	}
	sessionID, err := ulid.Parse(claims.SessionID)
	if err != nil {
		return invalid(err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return invalid(err)
	}

	return Principal{
		UserID:      userID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Role:        role,
		SessionID:   sessionID,
	}, nil
}
