// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
// It never crosses the credential-check boundary: login and refresh wrap it
// into the same generic invalid-credentials error to prevent enumeration.
var ErrNotFound = errors.New("not found")
