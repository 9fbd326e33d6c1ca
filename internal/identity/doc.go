// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

// Package identity provides credential verification, token issuance, and
// session lifecycle for Crewdeck.
//
// # Domain Types
//
// Domain types (User, Session, Principal) should be created using their
// respective constructors:
//   - NewUser - creates a User with validated username and password hash
//   - NewSession - creates a Session with a fresh soft-expiry window
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, refresh (session reuse vs. rotation), registration
//   - TokenService - signed access/refresh token issuance and verification
//   - PasswordResetService - password reset flow
//
// Access tokens are self-contained: Route and Socket guards verify them
// without touching the session ledger, trading immediate revocability for
// statelessness. The session ledger is the source of truth only for the
// refresh path, where the reuse-vs-rotate decision is made.
package identity
