// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session window configuration.
const (
	// SessionInitialWindow is the soft-expiry window granted on login and
	// on every refresh. It is renewed via refresh, not via continued
	// REST use.
	SessionInitialWindow = 60 * time.Second

	// SessionReuseWindow is the grace period after a session's soft
	// expiry within which a refresh extends the session in place.
	// A gap longer than this starts a new session.
	SessionReuseWindow = 5 * time.Minute
)

// Session represents one logical login episode: its time window and the
// device it originated from. EndAt is a refreshable soft deadline, not a
// hard logout boundary; sessions are never physically deleted by this core.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	StartAt   time.Time
	EndAt     time.Time
	IPAddress string
	UserAgent string
	Device    DeviceInfo
}

// NewSession creates a validated Session starting at now with the initial
// soft-expiry window. The user agent is parsed best-effort into structured
// device fields.
func NewSession(userID ulid.ULID, ipAddress, userAgent string, now time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if now.IsZero() {
		return nil, oops.Code("SESSION_INVALID_START").Errorf("start time cannot be zero")
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		StartAt:   now,
		EndAt:     now.Add(SessionInitialWindow),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Device:    ParseUserAgent(userAgent),
	}, nil
}

// LapsedAt returns true if the session's soft expiry is more than the
// reuse window in the past at the given time. A lapsed session is rotated
// on refresh instead of extended.
func (s *Session) LapsedAt(now time.Time) bool {
	if s.EndAt.IsZero() {
		return true
	}
	return now.Sub(s.EndAt) > SessionReuseWindow
}

// SessionRepository manages session ledger persistence. The ledger is the
// source of truth for the refresh decision and must serialize conflicting
// writes; ExtendEnd carries an optimistic guard for that purpose.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// GetByUser retrieves all sessions for a user, newest first.
	GetByUser(ctx context.Context, userID ulid.ULID) ([]*Session, error)

	// ExtendEnd moves a session's soft expiry to endAt, but only while the
	// stored end_at is still at or after staleAfter. Returns false without
	// writing when the guard fails (session lapsed or a concurrent refresh
	// already rotated it); callers then fall back to rotation.
	ExtendEnd(ctx context.Context, id ulid.ULID, endAt, staleAfter time.Time) (bool, error)
}
