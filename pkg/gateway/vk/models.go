/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a verification key.
type Status string

// Verification key statuses.
const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusRevoked    Status = "revoked"
)

// ParseStatus returns the status for its string representation.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusDeprecated, StatusRevoked:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown verification key status: %s", s)
	}
}

// UnmarshalJSON unmarshals and validates the status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}

	*s = status

	return nil
}

// VerificationKey is a registered verification key record. The Hash is the
// canonical content address of Data and is globally unique. Alias, when set,
// is unique per prover.
type VerificationKey struct {
	ID                uuid.UUID       `json:"id"`
	Prover            string          `json:"prover"`
	Version           string          `json:"version"`
	ProofSystem       string          `json:"proof_system"`
	ProofType         string          `json:"proof_type,omitempty"`
	Hash              string          `json:"vk_hash"`
	Data              json.RawMessage `json:"vk_data"`
	Alias             string          `json:"alias,omitempty"`
	Status            Status          `json:"status"`
	DeprecationReason string          `json:"deprecation_reason,omitempty"`
	RegisteredBy      uuid.UUID       `json:"registered_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Active            bool            `json:"active"`
}

// IsRevoked reports whether the key must not authorize verifications.
func (k *VerificationKey) IsRevoked() bool {
	return k.Status == StatusRevoked
}

// CreateRequest carries the fields of a key registration.
type CreateRequest struct {
	Prover      string          `json:"prover"`
	Version     string          `json:"version"`
	ProofSystem string          `json:"proof_system"`
	ProofType   string          `json:"proof_type,omitempty"`
	Alias       string          `json:"alias,omitempty"`
	Data        json.RawMessage `json:"vk_data"`
}

// UpdateRequest carries a partial update: nil fields leave existing values unchanged.
type UpdateRequest struct {
	Status            *Status `json:"status,omitempty"`
	DeprecationReason *string `json:"deprecation_reason,omitempty"`
	Alias             *string `json:"alias,omitempty"`
}

// ListParams filters and pages a key listing.
type ListParams struct {
	Prover string
	Status string
	Limit  int
	Offset int
}
