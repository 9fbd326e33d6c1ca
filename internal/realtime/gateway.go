// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/net/websocket"

	"github.com/crewdeck/crewdeck/internal/identity"
)

// MaxJoinedRooms caps how many project rooms one connection may join.
const MaxJoinedRooms = 32

// TokenVerifier validates an access token into a Principal. Implemented
// by identity.TokenService.
type TokenVerifier interface {
	VerifyAccess(token string) (identity.Principal, error)
}

// Observer receives gateway lifecycle notifications, typically to drive
// metrics.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	EventBroadcast(eventType string)
}

// Gateway is the websocket entry point. Each connection must authenticate
// before anything else: either with a token query parameter on the
// handshake or with an auth frame as its first message. A missing token
// closes the connection silently; an invalid one is logged and closed.
type Gateway struct {
	verifier TokenVerifier
	registry *Registry
	hub      *Hub
	logger   *slog.Logger
	observer Observer
}

// NewGateway creates a Gateway with its own registry and hub.
func NewGateway(verifier TokenVerifier, logger *slog.Logger) (*Gateway, error) {
	if verifier == nil {
		return nil, oops.Errorf("token verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		verifier: verifier,
		registry: NewRegistry(),
		hub:      NewHub(logger),
		logger:   logger,
	}, nil
}

// Registry exposes the presence registry for collaborators.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// SetObserver registers a lifecycle observer. Must be called before the
// handler starts accepting connections.
func (g *Gateway) SetObserver(o Observer) {
	g.observer = o
}

// Handler returns the websocket handler to mount on the HTTP server.
func (g *Gateway) Handler() http.Handler {
	return websocket.Handler(g.handleConn)
}

// clientMessage is one inbound frame. Token rides along so a connection
// can authenticate inline on its first frame.
type clientMessage struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// roomAck is the payload for join/leave acknowledgement events.
type roomAck struct {
	ProjectID string `json:"projectId"`
}

// conn is the per-connection state.
type conn struct {
	id        ulid.ULID
	peer      *Peer
	principal *identity.Principal
	rooms     map[string]struct{}
}

func (g *Gateway) handleConn(ws *websocket.Conn) {
	defer func() {
		_ = ws.Close()
	}()

	if g.observer != nil {
		g.observer.ConnectionOpened()
		defer g.observer.ConnectionClosed()
	}

	c := &conn{
		id:    ulid.Make(),
		peer:  NewPeer(ws),
		rooms: make(map[string]struct{}),
	}
	decoder := json.NewDecoder(ws)

	// Tokens may arrive as a query parameter instead of an auth frame.
	if request := ws.Request(); request != nil {
		if token := strings.TrimSpace(request.URL.Query().Get("token")); token != "" {
			if !g.authenticate(c, token) {
				return
			}
		}
	}

	defer g.teardown(c)

	for {
		var msg clientMessage
		if err := decoder.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				g.logger.Debug("gateway connection read failed",
					"conn_id", c.id.String(),
					"error", err,
				)
			}
			return
		}

		if c.principal == nil {
			// First frame must carry a token, either as an auth frame or
			// inline on the first real message. No token means silent close.
			if strings.TrimSpace(msg.Token) == "" {
				return
			}
			if !g.authenticate(c, msg.Token) {
				return
			}
			if msg.Type == MessageAuth {
				continue
			}
		}

		switch msg.Type {
		case MessageAuth:
			// Already authenticated; ignore repeats.
		case MessageJoinRoom:
			g.joinProjectRoom(c, msg.ProjectID)
		case MessageLeaveRoom:
			g.leaveProjectRoom(c, msg.ProjectID)
		default:
			g.sendError(c, "unsupported message type")
		}
	}
}

// authenticate verifies the token, registers the connection, and joins
// the private user room. Returns false when the connection must close.
func (g *Gateway) authenticate(c *conn, token string) bool {
	principal, err := g.verifier.VerifyAccess(token)
	if err != nil {
		g.logger.Info("gateway auth rejected",
			"conn_id", c.id.String(),
			"error", err,
		)
		return false
	}

	c.principal = &principal
	g.registry.Add(principal.UserID, c.id)

	userRoom := UserRoom(principal.UserID)
	g.hub.Join(userRoom, c.peer)
	c.rooms[userRoom] = struct{}{}

	g.logger.Debug("gateway connection authenticated",
		"conn_id", c.id.String(),
		"user_id", principal.UserID.String(),
	)
	return true
}

func (g *Gateway) joinProjectRoom(c *conn, projectID string) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		g.sendError(c, "projectId is required")
		return
	}
	if len(c.rooms) >= MaxJoinedRooms {
		g.sendError(c, "joined room limit reached")
		return
	}

	room := ProjectRoom(projectID)
	g.hub.Join(room, c.peer)
	c.rooms[room] = struct{}{}

	g.sendAck(c, EventJoinedRoomAck, projectID)
}

func (g *Gateway) leaveProjectRoom(c *conn, projectID string) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		g.sendError(c, "projectId is required")
		return
	}

	room := ProjectRoom(projectID)
	g.hub.Leave(room, c.peer)
	delete(c.rooms, room)

	g.sendAck(c, EventLeftRoomAck, projectID)
}

// teardown removes a closing connection from the registry and all rooms.
func (g *Gateway) teardown(c *conn) {
	for room := range c.rooms {
		g.hub.Leave(room, c.peer)
	}
	if c.principal != nil {
		g.registry.Remove(c.principal.UserID, c.id)
	}
}

func (g *Gateway) sendAck(c *conn, eventType, projectID string) {
	event, err := NewEvent(eventType, "", roomAck{ProjectID: projectID})
	if err != nil {
		return
	}
	_ = c.peer.Send(event) //nolint:errcheck // Best effort
}

func (g *Gateway) sendError(c *conn, message string) {
	event, err := NewEvent(EventError, "", map[string]string{"message": message})
	if err != nil {
		return
	}
	_ = c.peer.Send(event) //nolint:errcheck // Best effort
}

// NotifyTaskAssigned emits a notification to the assignee's private room.
func (g *Gateway) NotifyTaskAssigned(userID ulid.ULID, payload any) error {
	return g.emit(EventNotification, UserRoom(userID), payload)
}

// BroadcastTaskUpdated emits a task-updated event to the project room.
func (g *Gateway) BroadcastTaskUpdated(projectID string, payload any) error {
	return g.emit(EventTaskUpdated, ProjectRoom(projectID), payload)
}

// BroadcastProjectUpdated emits a project-updated event to the project room.
func (g *Gateway) BroadcastProjectUpdated(projectID string, payload any) error {
	return g.emit(EventProjectUpdated, ProjectRoom(projectID), payload)
}

// BroadcastMemberJoined announces a new member to the project room.
func (g *Gateway) BroadcastMemberJoined(projectID string, payload any) error {
	return g.emit(EventUserJoined, ProjectRoom(projectID), payload)
}

// BroadcastMemberLeft announces a departed member to the project room.
func (g *Gateway) BroadcastMemberLeft(projectID string, payload any) error {
	return g.emit(EventUserLeft, ProjectRoom(projectID), payload)
}

func (g *Gateway) emit(eventType, room string, payload any) error {
	event, err := NewEvent(eventType, room, payload)
	if err != nil {
		return err
	}
	g.hub.Broadcast(event)
	if g.observer != nil {
		g.observer.EventBroadcast(eventType)
	}
	return nil
}
