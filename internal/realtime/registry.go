// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package realtime

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Registry tracks which users currently hold at least one live gateway
// connection. It is process-local; presence does not span instances.
type Registry struct {
	mu    sync.RWMutex
	conns map[ulid.ULID]map[ulid.ULID]struct{} // userID -> set of connIDs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ulid.ULID]map[ulid.ULID]struct{}),
	}
}

// Add records a connection for a user.
func (r *Registry) Add(userID, connID ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[ulid.ULID]struct{}, 1)
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
}

// Remove drops a connection for a user. The user entry is removed when its
// last connection goes away, so IsOnline flips to false.
func (r *Registry) Remove(userID, connID ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// IsOnline returns true if the user has at least one live connection.
func (r *Registry) IsOnline(userID ulid.ULID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns[userID]) > 0
}

// Connections returns the connection ids for a user.
func (r *Registry) Connections(userID ulid.ULID) []ulid.ULID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	result := make([]ulid.ULID, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	return result
}

// OnlineUsers returns the ids of all users with at least one connection.
func (r *Registry) OnlineUsers() []ulid.ULID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ulid.ULID, 0, len(r.conns))
	for id := range r.conns {
		result = append(result, id)
	}
	return result
}

// Count returns the number of distinct online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
