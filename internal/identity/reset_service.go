// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles the password reset flow.
type PasswordResetService struct {
	users  UserRepository
	hasher PasswordHasher
	now    func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(users UserRepository, hasher PasswordHasher) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &PasswordResetService{
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}, nil
}

// RequestReset starts a reset for the account matching the identifier,
// which may be either a username or an email address. When no account
// matches, it returns an empty token and no error so the caller can answer
// with the same generic message as a match would (anti-enumeration). A new
// request overwrites any prior outstanding token.
//
// The returned plaintext token is for the mail collaborator; it is never
// stored.
func (s *PasswordResetService) RequestReset(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", oops.Code("RESET_IDENTIFIER_EMPTY").Errorf("identifier cannot be empty")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByIdentifier").
			Wrap(err)
	}

	if !user.IsActive() {
		return "", oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("user_id", user.ID.String()).
			Errorf("account is not active")
	}

	token, prefix, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	expiresAt := s.now().Add(ResetTokenExpiry)
	if err := s.users.SetResetToken(ctx, user.ID, prefix, hash, expiresAt); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "SetResetToken").
			Wrap(err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// is located by its non-secret prefix and confirmed with a constant-time
// hash compare; the first unexpired match wins. The password swap and the
// token clear happen atomically, so a token can never be consumed twice.
// Invalid and expired tokens produce the same generic error.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return oops.Code("RESET_TOKEN_EMPTY").Errorf("reset token cannot be empty")
	}
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Errorf("new password cannot be empty")
	}
	if len(token) < ResetTokenPrefixLen {
		return invalidResetToken()
	}

	candidates, err := s.users.GetByResetPrefix(ctx, token[:ResetTokenPrefixLen])
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "GetByResetPrefix").
			Wrap(err)
	}

	now := s.now()
	var match *User
	for _, candidate := range candidates {
		if !VerifyResetToken(token, candidate.ResetTokenHash) {
			continue
		}
		if candidate.ResetExpiresAt == nil || now.After(*candidate.ResetExpiresAt) {
			continue
		}
		match = candidate
		break
	}
	if match == nil {
		return invalidResetToken()
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	if err := s.users.ResetPassword(ctx, match.ID, hashed); err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "ResetPassword").
			With("user_id", match.ID.String()).
			Wrap(err)
	}

	return nil
}

// invalidResetToken is the single rejection for unknown, mismatched, and
// expired tokens alike.
func invalidResetToken() error {
	return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired reset token")
}
