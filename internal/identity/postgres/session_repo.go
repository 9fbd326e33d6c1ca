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

const sessionColumns = `id, user_id, start_at, end_at, ip_address, user_agent,
       device_browser, device_os, device_kind`

// SessionRepository implements identity.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *identity.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, start_at, end_at, ip_address, user_agent, device_browser, device_os, device_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		session.ID.String(),
		session.UserID.String(),
		session.StartAt,
		session.EndAt,
		session.IPAddress,
		session.UserAgent,
		session.Device.Browser,
		session.Device.OS,
		session.Device.Device,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id.String())

	session, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ID_FAILED").
			With("operation", "get session by id").
			With("id", id.String()).
			Wrap(err)
	}
	return session, nil
}

// GetByUser retrieves all sessions for a user, newest first.
func (r *SessionRepository) GetByUser(ctx context.Context, userID ulid.ULID) ([]*identity.Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY start_at DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_USER_FAILED").
			With("operation", "get sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*identity.Session
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}

	return sessions, nil
}

// ExtendEnd moves a session's soft expiry to endAt while the stored end_at
// is still at or after staleAfter. The guard runs inside the UPDATE so the
// lapse check and the write are one atomic statement; a caller holding a
// stale read sees false and rotates instead.
func (r *SessionRepository) ExtendEnd(ctx context.Context, id ulid.ULID, endAt, staleAfter time.Time) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE sessions SET end_at = $2
		WHERE id = $1 AND end_at >= $3
	`, id.String(), endAt, staleAfter)
	if err != nil {
		return false, oops.Code("SESSION_EXTEND_FAILED").
			With("operation", "extend session end").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *SessionRepository) scanSession(row pgx.Row) (*identity.Session, error) {
	var (
		idStr     string
		userIDStr string
		startAt   time.Time
		endAt     time.Time
		ipAddress string
		userAgent string
		browser   string
		osName    string
		device    string
	)

	err := row.Scan(&idStr, &userIDStr, &startAt, &endAt, &ipAddress, &userAgent, &browser, &osName, &device)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &identity.Session{
		ID:        id,
		UserID:    userID,
		StartAt:   startAt,
		EndAt:     endAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Device: identity.DeviceInfo{
			Browser: browser,
			OS:      osName,
			Device:  device,
		},
	}, nil
}

// Compile-time interface check.
var _ identity.SessionRepository = (*SessionRepository)(nil)
