// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/identity"
	"github.com/crewdeck/crewdeck/internal/identity/postgres"
)

var userCols = []string{
	"id", "username", "email", "display_name", "avatar_url", "role", "status",
	"password_hash", "failed_attempts", "locked_until",
	"reset_token_hash", "reset_token_prefix", "reset_expires_at",
	"last_login_at", "created_at", "updated_at",
}

func userRow(id ulid.ULID, username string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(userCols).AddRow(
		id.String(), username, username+"@example.com", "Display", "",
		"member", "active",
		"$argon2id$hash", 0, (*time.Time)(nil),
		"", "", (*time.Time)(nil),
		(*time.Time)(nil), now, now,
	)
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts all columns", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user, err := identity.NewUser("alice", "alice@example.com", "Alice", "$argon2id$hash", identity.RoleMember)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(
				user.ID.String(), "alice", "alice@example.com", "Alice", "",
				"member", "active",
				"$argon2id$hash", 0, (*time.Time)(nil),
				"", "", (*time.Time)(nil),
				(*time.Time)(nil), user.CreatedAt, user.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user, err := identity.NewUser("alice", "", "", "$argon2id$hash", identity.RoleMember)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(errors.New("unique constraint violation"))

		repo := postgres.NewUserRepository(mock)
		err = repo.Create(ctx, user)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unique constraint violation")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Getters(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	tests := []struct {
		name    string
		pattern string
		args    []any
		call    func(repo *postgres.UserRepository) (*identity.User, error)
	}{
		{
			name:    "GetByID",
			pattern: `SELECT (.+) FROM users WHERE id = \$1`,
			args:    []any{id.String()},
			call: func(repo *postgres.UserRepository) (*identity.User, error) {
				return repo.GetByID(ctx, id)
			},
		},
		{
			name:    "GetByUsername",
			pattern: `SELECT (.+) FROM users WHERE LOWER\(username\) = LOWER\(\$1\)`,
			args:    []any{"alice"},
			call: func(repo *postgres.UserRepository) (*identity.User, error) {
				return repo.GetByUsername(ctx, "alice")
			},
		},
		{
			name:    "GetByIdentifier",
			pattern: `SELECT (.+) FROM users WHERE LOWER\(username\) = LOWER\(\$1\) OR LOWER\(email\) = LOWER\(\$1\)`,
			args:    []any{"alice@example.com"},
			call: func(repo *postgres.UserRepository) (*identity.User, error) {
				return repo.GetByIdentifier(ctx, "alice@example.com")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+" found", func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery(tt.pattern).
				WithArgs(tt.args...).
				WillReturnRows(userRow(id, "alice"))

			repo := postgres.NewUserRepository(mock)
			user, err := tt.call(repo)
			require.NoError(t, err)
			assert.Equal(t, id, user.ID)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, identity.RoleMember, user.Role)
			assert.Equal(t, identity.StatusActive, user.Status)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(tt.name+" not found", func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery(tt.pattern).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows(userCols))

			repo := postgres.NewUserRepository(mock)
			_, err = tt.call(repo)
			require.Error(t, err)
			assert.ErrorIs(t, err, identity.ErrNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates existing user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user, err := identity.NewUser("alice", "alice@example.com", "Alice", "$argon2id$hash", identity.RoleMember)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE users SET`).
			WithArgs(
				user.ID.String(), "alice", "alice@example.com", "Alice", "",
				"member", "active", "$argon2id$hash", 0, (*time.Time)(nil),
				user.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.Update(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		user, err := identity.NewUser("alice", "", "", "$argon2id$hash", identity.RoleMember)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE users SET`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewUserRepository(mock)
		err = repo.Update(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	at := time.Now()

	t.Run("updates timestamp", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET last_login_at = \$2 WHERE id = \$1`).
			WithArgs(id.String(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.TouchLastLogin(ctx, id, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET last_login_at = \$2 WHERE id = \$1`).
			WithArgs(id.String(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewUserRepository(mock)
		err = repo.TouchLastLogin(ctx, id, at)
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_ResetTokenFlow(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("SetResetToken stores the slot", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expiresAt := time.Now().Add(time.Hour)
		mock.ExpectExec(`UPDATE users SET reset_token_prefix = \$2`).
			WithArgs(id.String(), "abcd1234", "hashhashhash", expiresAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.SetResetToken(ctx, id, "abcd1234", "hashhashhash", expiresAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetByResetPrefix returns matching users", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE reset_token_prefix = \$1`).
			WithArgs("abcd1234").
			WillReturnRows(userRow(id, "alice"))

		repo := postgres.NewUserRepository(mock)
		users, err := repo.GetByResetPrefix(ctx, "abcd1234")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, id, users[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetByResetPrefix with no match returns empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE reset_token_prefix = \$1`).
			WithArgs("ffffffff").
			WillReturnRows(pgxmock.NewRows(userCols))

		repo := postgres.NewUserRepository(mock)
		users, err := repo.GetByResetPrefix(ctx, "ffffffff")
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ResetPassword clears the slot atomically", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
			WithArgs(id.String(), "$argon2id$newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewUserRepository(mock)
		require.NoError(t, repo.ResetPassword(ctx, id, "$argon2id$newhash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ResetPassword on consumed token returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
			WithArgs(id.String(), "$argon2id$newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewUserRepository(mock)
		err = repo.ResetPassword(ctx, id, "$argon2id$newhash")
		assert.ErrorIs(t, err, identity.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_ScanErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid ulid in row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now()
		rows := pgxmock.NewRows(userCols).AddRow(
			"not-a-ulid", "alice", "", "", "",
			"member", "active",
			"$argon2id$hash", 0, (*time.Time)(nil),
			"", "", (*time.Time)(nil),
			(*time.Time)(nil), now, now,
		)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WillReturnRows(rows)

		repo := postgres.NewUserRepository(mock)
		_, err = repo.GetByID(ctx, ulid.Make())
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
