// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

// Package realtime provides the websocket gateway, the presence registry,
// and the room broadcast hub. Delivery is fire-and-forget, at-most-once;
// a disconnected recipient simply misses the event.
package realtime
