// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // reset tokens live for one hour

	// ResetTokenPrefixLen is the length of the non-secret lookup prefix
	// stored alongside the token hash. Lookup goes by prefix; the secret
	// remainder is still protected by the constant-time hash compare.
	ResetTokenPrefixLen = 8
)

// GenerateResetToken creates a secure random token, its sha256 hash, and
// its non-secret lookup prefix. The plaintext token is handed to the mail
// collaborator; only the prefix and hash are stored.
func GenerateResetToken() (token, prefix, hash string, err error) {
	raw := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(raw)
	return token, token[:ResetTokenPrefixLen], hashResetToken(token), nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash
// using a constant-time comparison.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := hashResetToken(token)
	// Both sides are hex-encoded sha256 digests of equal length.
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// hashResetToken computes the hex-encoded sha256 hash of a token.
func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
