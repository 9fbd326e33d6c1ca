// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/crewdeck/crewdeck/internal/identity"
)

const userColumns = `id, username, email, display_name, avatar_url, role, status,
       password_hash, failed_attempts, locked_until,
       reset_token_hash, reset_token_prefix, reset_expires_at,
       last_login_at, created_at, updated_at`

// UserRepository implements identity.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, username, email, display_name, avatar_url, role, status,
			password_hash, failed_attempts, locked_until,
			reset_token_hash, reset_token_prefix, reset_expires_at,
			last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		string(user.Role),
		string(user.Status),
		user.PasswordHash,
		user.FailedAttempts,
		user.LockedUntil,
		user.ResetTokenHash,
		user.ResetTokenPrefix,
		user.ResetExpiresAt,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByIdentifier retrieves a user by username or email (case-insensitive).
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
	`, identifier)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_IDENTIFIER_FAILED").
			With("operation", "get user by identifier").
			Wrap(err)
	}
	return user, nil
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			username = $2,
			email = $3,
			display_name = $4,
			avatar_url = $5,
			role = $6,
			status = $7,
			password_hash = $8,
			failed_attempts = $9,
			locked_until = $10,
			updated_at = $11
		WHERE id = $1
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		string(user.Role),
		string(user.Status),
		user.PasswordHash,
		user.FailedAttempts,
		user.LockedUntil,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// TouchLastLogin updates only the last-login timestamp.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET last_login_at = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("USER_TOUCH_LOGIN_FAILED").
			With("operation", "update last_login_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// SetResetToken stores the reset token slot, overwriting any prior
// outstanding token.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, prefix, hash string, expiresAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			reset_token_prefix = $2,
			reset_token_hash = $3,
			reset_expires_at = $4,
			updated_at = $5
		WHERE id = $1
	`, id.String(), prefix, hash, expiresAt, time.Now())
	if err != nil {
		return oops.Code("USER_SET_RESET_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// GetByResetPrefix retrieves users whose stored reset token prefix matches.
// An empty result is returned as an empty slice, not an error.
func (r *UserRepository) GetByResetPrefix(ctx context.Context, prefix string) ([]*identity.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_prefix = $1 AND reset_token_hash <> ''
	`, prefix)
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_PREFIX_FAILED").
			With("operation", "get users by reset prefix").
			Wrap(err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_SCAN_FAILED").
				With("operation", "scan user row").
				Wrap(err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_ROWS_ERROR").
			With("operation", "iterate user rows").
			Wrap(err)
	}

	return users, nil
}

// ResetPassword atomically replaces the password hash and clears the reset
// token slot. The guard on reset_token_hash makes a consumed token
// unusable a second time.
func (r *UserRepository) ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			password_hash = $2,
			reset_token_prefix = '',
			reset_token_hash = '',
			reset_expires_at = NULL,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = $3
		WHERE id = $1 AND reset_token_hash <> ''
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_RESET_PASSWORD_FAILED").
			With("operation", "reset password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *UserRepository) scanUser(row pgx.Row) (*identity.User, error) {
	var (
		idStr            string
		username         string
		email            string
		displayName      string
		avatarURL        string
		role             string
		status           string
		passwordHash     string
		failedAttempts   int
		lockedUntil      *time.Time
		resetTokenHash   string
		resetTokenPrefix string
		resetExpiresAt   *time.Time
		lastLoginAt      *time.Time
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&email,
		&displayName,
		&avatarURL,
		&role,
		&status,
		&passwordHash,
		&failedAttempts,
		&lockedUntil,
		&resetTokenHash,
		&resetTokenPrefix,
		&resetExpiresAt,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	return &identity.User{
		ID:               id,
		Username:         username,
		Email:            email,
		DisplayName:      displayName,
		AvatarURL:        avatarURL,
		Role:             identity.Role(role),
		Status:           identity.Status(status),
		PasswordHash:     passwordHash,
		FailedAttempts:   failedAttempts,
		LockedUntil:      lockedUntil,
		ResetTokenHash:   resetTokenHash,
		ResetTokenPrefix: resetTokenPrefix,
		ResetExpiresAt:   resetExpiresAt,
		LastLoginAt:      lastLoginAt,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// Compile-time interface check.
var _ identity.UserRepository = (*UserRepository)(nil)
