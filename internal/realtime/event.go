// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package realtime

import (
	"encoding/json"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Server-to-client event types.
const (
	EventTaskUpdated    = "task-updated"
	EventProjectUpdated = "project-updated"
	EventNotification   = "notification"
	EventUserJoined     = "user-joined-project"
	EventUserLeft       = "user-left-project"
	EventJoinedRoomAck  = "joined-project-room"
	EventLeftRoomAck    = "left-project-room"
	EventError          = "error"
)

// Client-to-server message types.
const (
	MessageAuth      = "auth"
	MessageJoinRoom  = "join-project-room"
	MessageLeaveRoom = "leave-project-room"
)

// Event is one outbound frame addressed to a room. Room never goes over
// the wire; it only routes the fan-out.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"-"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event with a JSON-encoded payload.
func NewEvent(eventType, room string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Event{}, oops.Code("EVENT_ENCODE_FAILED").
				With("event_type", eventType).
				Wrap(err)
		}
		raw = encoded
	}
	return Event{Type: eventType, Room: room, Payload: raw}, nil
}

// UserRoom is the private per-user room, joined automatically on connect.
// Targeted notifications go here so callers never track connection ids.
func UserRoom(userID ulid.ULID) string {
	return "user:" + userID.String()
}

// ProjectRoom is the shared room for one project's collaborators.
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}
