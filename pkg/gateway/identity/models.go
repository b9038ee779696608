/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of authorization roles an identity can hold.
type Role int

// Roles.
const (
	RoleUser Role = iota
	RoleProverManager
	RoleAdmin
)

const (
	roleUserName          = "user"
	roleProverManagerName = "prover_manager"
	roleAdminName         = "admin"
)

// ParseRole returns the role for its string representation.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleUserName:
		return RoleUser, nil
	case roleProverManagerName:
		return RoleProverManager, nil
	case roleAdminName:
		return RoleAdmin, nil
	default:
		return RoleUser, fmt.Errorf("unknown role: %s", s)
	}
}

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleProverManager:
		return roleProverManagerName
	case RoleAdmin:
		return roleAdminName
	default:
		return roleUserName
	}
}

// MarshalJSON marshals the role as its string representation.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON unmarshals the role from its string representation.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	role, err := ParseRole(s)
	if err != nil {
		return err
	}

	*r = role

	return nil
}

// Identity is an authenticated principal. Role and ManagedProver are immutable
// through this service; role changes happen out-of-band.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	ExternalID    string    `json:"external_id,omitempty"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	ManagedProver string    `json:"managed_prover,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CanManage reports whether the identity may manage verification keys for the
// given prover: admins always, prover managers only within their scope.
func (i *Identity) CanManage(prover string) bool {
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleProverManager:
		return i.ManagedProver == prover
	default:
		return false
	}
}

// Credential is an API-key record. Only the one-way hash of the secret is ever
// stored. Revocation is terminal.
type Credential struct {
	ID         uuid.UUID  `json:"id"`
	IdentityID uuid.UUID  `json:"identity_id"`
	KeyHash    string     `json:"key_hash"`
	Name       string     `json:"name"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
