// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/identity"
	"github.com/crewdeck/crewdeck/pkg/errutil"
)

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     identity.TokenConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: identity.TokenConfig{
				AccessSecret:  []byte("access"),
				RefreshSecret: []byte("refresh"),
			},
		},
		{
			name:    "missing access secret",
			cfg:     identity.TokenConfig{RefreshSecret: []byte("refresh")},
			wantErr: true,
		},
		{
			name:    "missing refresh secret",
			cfg:     identity.TokenConfig{AccessSecret: []byte("access")},
			wantErr: true,
		},
		{
			name: "identical secrets",
			cfg: identity.TokenConfig{
				AccessSecret:  []byte("shared"),
				RefreshSecret: []byte("shared"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := identity.NewTokenService(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
				assert.Nil(t, ts)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, ts)
		})
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := testTokenService(t)

	user := &identity.User{
		ID:          ulid.Make(),
		Username:    "alice",
		DisplayName: "Alice Doe",
		Role:        identity.RoleManager,
	}
	sessionID := ulid.Make()

	pair, err := ts.IssuePair(user, sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	for name, verify := range map[string]func(string) (identity.Principal, error){
		"access":  ts.VerifyAccess,
		"refresh": ts.VerifyRefresh,
	} {
		token := pair.AccessToken
		if name == "refresh" {
			token = pair.RefreshToken
		}
		principal, err := verify(token)
		require.NoError(t, err, name)
		assert.Equal(t, user.ID, principal.UserID, name)
		assert.Equal(t, "alice", principal.Username, name)
		assert.Equal(t, "Alice Doe", principal.DisplayName, name)
		assert.Equal(t, identity.RoleManager, principal.Role, name)
		assert.Equal(t, sessionID, principal.SessionID, name)
	}
}

func TestTokenService_WireClaimNames(t *testing.T) {
	ts := testTokenService(t)

	user := &identity.User{
		ID:          ulid.Make(),
		Username:    "alice",
		DisplayName: "Alice Doe",
		Role:        identity.RoleMember,
	}
	sessionID := ulid.Make()

	pair, err := ts.IssuePair(user, sessionID)
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))

	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, "alice", claims["una"])
	assert.Equal(t, "Alice Doe", claims["dna"])
	assert.Equal(t, "member", claims["rol"])
	assert.Equal(t, sessionID.String(), claims["ses"])
	assert.Contains(t, claims, "iat")
	assert.Contains(t, claims, "exp")
}

func TestTokenService_VerifyRejections(t *testing.T) {
	ts := testTokenService(t)

	user := &identity.User{
		ID:       ulid.Make(),
		Username: "alice",
		Role:     identity.RoleMember,
	}
	pair, err := ts.IssuePair(user, ulid.Make())
	require.NoError(t, err)

	t.Run("cross-kind verification fails", func(t *testing.T) {
		_, err := ts.VerifyAccess(pair.RefreshToken)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")

		_, err = ts.VerifyRefresh(pair.AccessToken)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		other, err := identity.NewTokenService(identity.TokenConfig{
			AccessSecret:  []byte("different-access"),
			RefreshSecret: []byte("different-refresh"),
		})
		require.NoError(t, err)

		_, err = other.VerifyAccess(pair.AccessToken)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		parts := strings.Split(pair.AccessToken, ".")
		require.Len(t, parts, 3)

		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		forged := strings.Replace(string(payload), `"rol":"member"`, `"rol":"admin"`, 1)
		parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

		_, err = ts.VerifyAccess(strings.Join(parts, "."))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := ts.VerifyAccess("not-a-jwt")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})
}

func TestTokenService_Expiry(t *testing.T) {
	ts, err := identity.NewTokenService(identity.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Nanosecond,
	})
	require.NoError(t, err)

	user := &identity.User{
		ID:       ulid.Make(),
		Username: "alice",
		Role:     identity.RoleMember,
	}
	pair, err := ts.IssuePair(user, ulid.Make())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = ts.VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")

	_, err = ts.VerifyRefresh(pair.RefreshToken)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
}
