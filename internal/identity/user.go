// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Status is the lifecycle state of a user account.
type Status string

// Account statuses.
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User represents a Crewdeck account.
type User struct {
	ID             ulid.ULID
	Username       string
	Email          string
	DisplayName    string
	AvatarURL      string
	Role           Role
	Status         Status
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time

	// Password reset slot. A single outstanding reset per user; a new
	// request overwrites the prior one. ResetTokenPrefix is a non-secret
	// lookup key; only the hash of the full token is stored.
	ResetTokenHash   string
	ResetTokenPrefix string
	ResetExpiresAt   *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUser creates a validated User with the given credentials.
// The password hash must already be computed by a PasswordHasher.
func NewUser(username, email, displayName, passwordHash string, role Role) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		Status:       StatusActive,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActive returns true if the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsLocked returns true if the account is currently locked out.
func (u *User) IsLocked() bool {
	return IsLockedOut(u.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (u *User) RecordFailure() {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts)
	u.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (u *User) RecordSuccess() {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = time.Now()
}

// HasPendingReset returns true if the user has an unexpired reset token at
// the given time.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetExpiresAt != nil && now.Before(*u.ResetExpiresAt)
}

// Profile is the minimal public view of a user, safe to return to clients.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// Profile returns the public profile view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		AvatarURL:   u.AvatarURL,
	}
}

// ValidateUsername validates a username against account rules.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByIdentifier retrieves a user whose username or email matches the
	// identifier (case-insensitive).
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// TouchLastLogin updates only the last-login timestamp.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// SetResetToken stores the reset token slot (prefix, hash, expiry),
	// overwriting any prior outstanding token.
	SetResetToken(ctx context.Context, id ulid.ULID, prefix, hash string, expiresAt time.Time) error

	// GetByResetPrefix retrieves users whose stored reset token prefix
	// matches. The prefix is a non-secret lookup key; callers must still
	// compare the full token hash in constant time.
	GetByResetPrefix(ctx context.Context, prefix string) ([]*User, error)

	// ResetPassword atomically replaces the password hash and clears the
	// reset token slot.
	ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
