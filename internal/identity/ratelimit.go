// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import "time"

// Login failure lockout configuration.
const (
	// LockoutDuration is how long an account stays locked after too many
	// consecutive failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the failure count that triggers a lockout.
	LockoutThreshold = 7
)

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// ComputeLockoutTime returns the lockout timestamp for the given failure
// count, or nil while the count is below the threshold.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := time.Now().Add(LockoutDuration)
	return &lockout
}
