// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/identity"
	"github.com/crewdeck/crewdeck/internal/identity/mocks"
	"github.com/crewdeck/crewdeck/pkg/errutil"
)

func TestPasswordResetService_RequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown identifier succeeds with empty token and no mutation", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		users.On("GetByIdentifier", ctx, "nobody@example.com").Return(nil, identity.ErrNotFound)

		token, err := svc.RequestReset(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, token)
		users.AssertNotCalled(t, "SetResetToken",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("known identifier stores prefix and hash, never the token", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		user := activeUser(t, "alice")

		var storedPrefix, storedHash string
		users.On("GetByIdentifier", ctx, "alice").Return(user, nil)
		users.On("SetResetToken", ctx, user.ID,
			mock.AnythingOfType("string"), mock.AnythingOfType("string"),
			mock.AnythingOfType("time.Time")).
			Run(func(args mock.Arguments) {
				storedPrefix = args.Get(2).(string)
				storedHash = args.Get(3).(string)
			}).
			Return(nil)

		token, err := svc.RequestReset(ctx, "alice")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		assert.Equal(t, token[:identity.ResetTokenPrefixLen], storedPrefix)
		assert.NotEqual(t, token, storedHash)
		assert.True(t, identity.VerifyResetToken(token, storedHash))
	})

	t.Run("suspended account is rejected", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		user := activeUser(t, "mallory")
		user.Status = identity.StatusSuspended
		users.On("GetByIdentifier", ctx, "mallory").Return(user, nil)

		_, err = svc.RequestReset(ctx, "mallory")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_INACTIVE")
	})

	t.Run("empty identifier is rejected", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		_, err = svc.RequestReset(ctx, "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_IDENTIFIER_EMPTY")
	})
}

func TestPasswordResetService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	// issueToken stores a real generated token on the user the way
	// RequestReset would and returns the plaintext.
	issueToken := func(t *testing.T, user *identity.User, expiresAt time.Time) string {
		t.Helper()
		token, prefix, hash, err := identity.GenerateResetToken()
		require.NoError(t, err)
		user.ResetTokenPrefix = prefix
		user.ResetTokenHash = hash
		user.ResetExpiresAt = &expiresAt
		return token
	}

	t.Run("valid token swaps the password", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		user := activeUser(t, "alice")
		token := issueToken(t, user, time.Now().Add(time.Hour))

		users.On("GetByResetPrefix", ctx, token[:identity.ResetTokenPrefixLen]).
			Return([]*identity.User{user}, nil)
		hasher.On("Hash", "new-password").Return("$argon2id$newhash", nil)
		users.On("ResetPassword", ctx, user.ID, "$argon2id$newhash").Return(nil)

		require.NoError(t, svc.ResetPassword(ctx, token, "new-password"))
	})

	t.Run("expired token fails with the generic rejection", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		user := activeUser(t, "alice")
		token := issueToken(t, user, time.Now().Add(-time.Minute))

		users.On("GetByResetPrefix", ctx, token[:identity.ResetTokenPrefixLen]).
			Return([]*identity.User{user}, nil)

		err = svc.ResetPassword(ctx, token, "new-password")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("unknown token fails with the generic rejection", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		token, _, _, err := identity.GenerateResetToken()
		require.NoError(t, err)

		users.On("GetByResetPrefix", ctx, token[:identity.ResetTokenPrefixLen]).
			Return(nil, identity.ErrNotFound)

		err = svc.ResetPassword(ctx, token, "new-password")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})

	t.Run("prefix collision still requires the full token to match", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		bystander := activeUser(t, "bob")
		issueToken(t, bystander, time.Now().Add(time.Hour))

		owner := activeUser(t, "alice")
		token := issueToken(t, owner, time.Now().Add(time.Hour))

		// Both come back for the same prefix; only the hash decides.
		users.On("GetByResetPrefix", ctx, token[:identity.ResetTokenPrefixLen]).
			Return([]*identity.User{bystander, owner}, nil)
		hasher.On("Hash", "new-password").Return("$argon2id$newhash", nil)
		users.On("ResetPassword", ctx, owner.ID, "$argon2id$newhash").Return(nil)

		require.NoError(t, svc.ResetPassword(ctx, token, "new-password"))
		users.AssertNotCalled(t, "ResetPassword", ctx, bystander.ID, mock.Anything)
	})

	t.Run("short and empty inputs are rejected before any lookup", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := identity.NewPasswordResetService(users, hasher)
		require.NoError(t, err)

		err = svc.ResetPassword(ctx, "", "new-password")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_EMPTY")

		err = svc.ResetPassword(ctx, "abc123", "")
		errutil.AssertErrorCode(t, err, "RESET_PASSWORD_EMPTY")

		err = svc.ResetPassword(ctx, "short", "new-password")
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")
	})
}

func TestGenerateResetToken(t *testing.T) {
	token, prefix, hash, err := identity.GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, token, identity.ResetTokenBytes*2)
	assert.Equal(t, token[:identity.ResetTokenPrefixLen], prefix)
	assert.True(t, identity.VerifyResetToken(token, hash))
	assert.False(t, identity.VerifyResetToken(token+"x", hash))
	assert.False(t, identity.VerifyResetToken("", hash))
	assert.False(t, identity.VerifyResetToken(token, ""))

	other, _, otherHash, err := identity.GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
	assert.False(t, identity.VerifyResetToken(other, hash))
	assert.False(t, identity.VerifyResetToken(token, otherHash))
}

func TestUser_HasPendingReset(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		user identity.User
		want bool
	}{
		{"no token", identity.User{ID: ulid.Make()}, false},
		{"unexpired token", identity.User{ResetTokenHash: "h", ResetExpiresAt: &future}, true},
		{"expired token", identity.User{ResetTokenHash: "h", ResetExpiresAt: &past}, false},
		{"hash without expiry", identity.User{ResetTokenHash: "h"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasPendingReset(now))
		})
	}
}
