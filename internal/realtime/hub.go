// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/crewdeck/crewdeck/internal/observability"
)

// Peer is one connected client. Writes are serialized so concurrent
// broadcasts never interleave frames on the wire.
type Peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewPeer wraps a connection in a Peer.
func NewPeer(w io.Writer) *Peer {
	return &Peer{encoder: json.NewEncoder(w)}
}

// Send writes one event frame to the peer.
func (p *Peer) Send(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(event) //nolint:wrapcheck // Delivery is best effort
}

// Hub maps room names to their subscribed peers and fans events out to
// them. Rooms come into existence on first join and vanish on last leave.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Peer]struct{}
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Peer]struct{}),
		logger: logger,
	}
}

// Join subscribes a peer to a room.
func (h *Hub) Join(room string, peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.rooms[room]
	if !ok {
		peers = make(map[*Peer]struct{}, 1)
		h.rooms[room] = peers
	}
	peers[peer] = struct{}{}
}

// Leave unsubscribes a peer from a room. The room is dropped when its
// last subscriber leaves.
func (h *Hub) Leave(room string, peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(peers, peer)
	if len(peers) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of peers currently in a room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Broadcast delivers an event to every peer in its room, at most once,
// with no retry. A failed write only affects that peer; its connection
// teardown handles the cleanup.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.rooms[event.Room]))
	for peer := range h.rooms[event.Room] {
		peers = append(peers, peer)
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		if err := peer.Send(event); err != nil {
			observability.RecordGatewaySendFailure(event.Type)
			h.logger.Debug("event dropped: peer write failed",
				"room", event.Room,
				"event_type", event.Type,
				"error", err,
			)
		}
	}
}
