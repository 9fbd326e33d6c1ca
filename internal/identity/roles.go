// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import "github.com/samber/oops"

// Role is a user's workspace role, carried in token claims.
type Role string

// Workspace roles.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if err := role.Validate(); err != nil {
		return "", err
	}
	return role, nil
}

// Validate returns an error if the role is not a known workspace role.
func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return nil
	default:
		return oops.Code("AUTH_INVALID_ROLE").
			With("role", string(r)).
			Errorf("unknown role %q", string(r))
	}
}
