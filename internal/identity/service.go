// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides credential verification and the refresh-time session
// rotation decision.
type Service struct {
	users     UserRepository
	sessions  SessionRepository
	hasher    PasswordHasher
	tokens    *TokenService
	logger    *slog.Logger
	now       func() time.Time
	onRefresh func(outcome string)
}

// NewService creates a new Service.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, tokens *TokenService, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ObserveRefresh registers a callback invoked with the session outcome
// of each successful refresh, either "reused" or "rotated". Typically
// drives metrics. Must be called before the service starts handling
// requests.
func (s *Service) ObserveRefresh(fn func(outcome string)) {
	s.onRefresh = fn
}

// dummyPasswordHash is verified against when the user doesn't exist so that
// response time stays consistent with the real-hash path.
// This is NOT a credential - it is a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// invalidCredentials is the single outward error for unknown usernames,
// wrong passwords, and inactive accounts at the login boundary.
func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
}

// LoginResult is the outcome of a successful login or refresh.
type LoginResult struct {
	TokenPair
	Profile Profile `json:"profile"`
}

// Login authenticates a user and opens a new session.
// Unknown usernames, wrong passwords, and non-active accounts all produce
// the same error, and password verification runs in every case to keep
// response times uniform.
func (s *Service) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*LoginResult, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	usable := false

	switch {
	case lookupErr != nil:
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	case user.IsActive():
		targetHash = user.PasswordHash
		usable = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !usable {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !usable || !valid {
		if usable {
			user.RecordFailure()
			_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort
		}
		return nil, invalidCredentials()
	}

	// Lockout is checked after verification to keep timing uniform.
	if user.IsLocked() {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	user.RecordSuccess()

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = newHash
		}
	}

	// Login succeeds even if the bookkeeping update fails.
	_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort

	return s.openSession(ctx, user, ipAddress, userAgent)
}

// Refresh consumes a refresh token and mints a new token pair, deciding
// whether to extend the existing session or rotate to a new one.
//
// Within the reuse window the session's soft expiry is extended in place
// under an optimistic guard; if the guard fails (the session lapsed, or a
// concurrent refresh rotated it first) a fresh session is opened instead.
// Either way exactly one ledger write happens, and none on rejected paths.
func (s *Service) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*LoginResult, error) {
	principal, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").Errorf("account is not active")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	if !user.IsActive() {
		return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("user_id", user.ID.String()).
			Errorf("account is not active")
	}

	now := s.now()
	sessionID, reused, err := s.decideSession(ctx, principal.SessionID, user.ID, ipAddress, userAgent, now)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last-login update failed",
			"user_id", user.ID.String(),
			"error", err,
		)
	}

	s.logger.Debug("refresh completed",
		"user_id", user.ID.String(),
		"session_id", sessionID.String(),
		"reused", reused,
	)
	if s.onRefresh != nil {
		outcome := "rotated"
		if reused {
			outcome = "reused"
		}
		s.onRefresh(outcome)
	}

	result := &LoginResult{TokenPair: pair, Profile: user.Profile()}
	return result, nil
}

// decideSession applies the reuse-vs-rotate rule and returns the session id
// the new token pair should carry.
func (s *Service) decideSession(ctx context.Context, sessionID, userID ulid.ULID, ipAddress, userAgent string, now time.Time) (ulid.ULID, bool, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return ulid.ULID{}, false, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get session by id").
			Wrap(err)
	}

	if session != nil && !session.LapsedAt(now) {
		extended, extendErr := s.sessions.ExtendEnd(ctx, session.ID, now.Add(SessionInitialWindow), now.Add(-SessionReuseWindow))
		if extendErr != nil {
			return ulid.ULID{}, false, oops.Code("SESSION_EXTEND_FAILED").
				With("session_id", session.ID.String()).
				Wrap(extendErr)
		}
		if extended {
			return session.ID, true, nil
		}
		// Lost the race against a concurrent refresh; rotate below.
	}

	rotated, err := NewSession(userID, ipAddress, userAgent, now)
	if err != nil {
		return ulid.ULID{}, false, err
	}
	if err := s.sessions.Create(ctx, rotated); err != nil {
		return ulid.ULID{}, false, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist rotated session").
			Wrap(err)
	}
	return rotated.ID, false, nil
}

// openSession creates a fresh session record and mints the token pair.
// Used by the login path.
func (s *Service) openSession(ctx context.Context, user *User, ipAddress, userAgent string) (*LoginResult, error) {
	now := s.now()

	session, err := NewSession(user.ID, ipAddress, userAgent, now)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	pair, err := s.tokens.IssuePair(user, session.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last-login update failed",
			"user_id", user.ID.String(),
			"error", err,
		)
	}

	return &LoginResult{TokenPair: pair, Profile: user.Profile()}, nil
}

// RegisterParams are the inputs for creating a new account.
type RegisterParams struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// Register creates a new active member account and returns its profile.
func (s *Service) Register(ctx context.Context, params RegisterParams) (Profile, error) {
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return Profile{}, err
	}

	user, err := NewUser(params.Username, params.Email, params.DisplayName, hash, RoleMember)
	if err != nil {
		return Profile{}, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return Profile{}, oops.Code("AUTH_REGISTER_FAILED").
			With("username", params.Username).
			Wrap(err)
	}

	return user.Profile(), nil
}

// Profile returns the public profile for the given user id.
func (s *Service) Profile(ctx context.Context, userID ulid.ULID) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, oops.Code("AUTH_ACCOUNT_INACTIVE").Errorf("account is not active")
		}
		return Profile{}, oops.Code("AUTH_PROFILE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	if !user.IsActive() {
		return Profile{}, oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("user_id", user.ID.String()).
			Errorf("account is not active")
	}
	return user.Profile(), nil
}
