/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package verify orchestrates proof verification: verification key trust
// checks on the gateway side, then the executor verdict, assembled into a
// single response with proof fingerprints.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
	"github.com/xavi-pinsach/prova/pkg/verifier/api"
)

var logger = log.New("prova/verify")

// defaultProver is assumed when a request does not name one.
const defaultProver = "zisk"

var (
	// ErrUnsupportedProver is returned for provers the gateway cannot route.
	ErrUnsupportedProver = errors.New("unsupported prover")

	// ErrKeyRevoked blocks verification against a revoked key. Deprecated
	// keys still verify; only revocation is a hard stop.
	ErrKeyRevoked = errors.New("verification key is revoked")

	// ErrInvalidProof is returned for proofs that are not valid JSON.
	ErrInvalidProof = errors.New("invalid proof format")
)

// Executor is the transport to a verifier executor.
type Executor interface {
	Verify(ctx context.Context, request *api.VerifyRequest) (*api.VerifyResponse, error)
}

// Request is a proof verification submission. Prover, ProofSystem and VKID
// are optional; an absent VKID skips trust-state checks entirely.
type Request struct {
	Proof        json.RawMessage `json:"proof"`
	PublicInputs []string        `json:"public_inputs,omitempty"`
	Prover       string          `json:"prover,omitempty"`
	ProofSystem  string          `json:"proof_system,omitempty"`
	VKID         string          `json:"vk_id,omitempty"`
}

// KeyInfo is the trust-state summary of the key a proof was checked against.
type KeyInfo struct {
	ID                string `json:"id"`
	Hash              string `json:"hash"`
	Alias             string `json:"alias,omitempty"`
	Status            string `json:"status"`
	DeprecationReason string `json:"deprecation_reason,omitempty"`
}

// Response is the assembled verification outcome.
type Response struct {
	Valid            bool     `json:"valid"`
	Prover           string   `json:"prover"`
	ProofSystem      string   `json:"proof_system"`
	ProofType        string   `json:"proof_type,omitempty"`
	ProverVersion    string   `json:"prover_version"`
	ProofHash        string   `json:"proof_hash"`
	PublicInputsHash string   `json:"public_inputs_hash,omitempty"`
	VK               *KeyInfo `json:"vk,omitempty"`
	VerifiedAt       string   `json:"verified_at"`
	Error            string   `json:"error,omitempty"`
}

// Service orchestrates verification requests.
type Service struct {
	registry *vk.Registry
	executor Executor
}

// NewService creates the orchestrator.
func NewService(registry *vk.Registry, executor Executor) *Service {
	return &Service{registry: registry, executor: executor}
}

// Verify runs one verification end to end. Trust-state failures and
// transport faults return errors; an invalid proof is a normal response
// with Valid=false.
func (s *Service) Verify(ctx context.Context, request *Request) (*Response, error) {
	prover := request.Prover
	if prover == "" {
		prover = defaultProver
	}

	proofSystem := request.ProofSystem
	if proofSystem == "" {
		proofSystem = defaultProver
	}

	if prover != defaultProver {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProver, prover)
	}

	var key *vk.VerificationKey

	if request.VKID != "" {
		resolved, err := s.registry.Resolve(prover, request.VKID)
		if err != nil {
			return nil, err
		}

		if resolved.IsRevoked() {
			reason := resolved.DeprecationReason
			if reason == "" {
				reason = "unknown reason"
			}

			return nil, fmt.Errorf("%w: %s", ErrKeyRevoked, reason)
		}

		key = resolved
	}

	proofBytes, err := vk.CanonicalJSON(request.Proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProof, err)
	}

	verdict, err := s.executor.Verify(ctx, &api.VerifyRequest{
		Proof:        proofBytes,
		PublicInputs: request.PublicInputs,
		ProofSystem:  proofSystem,
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("verification complete: prover=%s valid=%t proof_bytes=%d",
		prover, verdict.Valid, len(proofBytes))

	response := &Response{
		Valid:            verdict.Valid,
		Prover:           prover,
		ProofSystem:      proofSystem,
		ProverVersion:    verdict.ProverVersion,
		ProofHash:        ProofHash(proofBytes, request.PublicInputs),
		PublicInputsHash: PublicInputsHash(request.PublicInputs),
		VerifiedAt:       time.Now().UTC().Format(time.RFC3339),
		Error:            verdict.Error,
	}

	if key != nil {
		response.ProofType = key.ProofType
		response.VK = &KeyInfo{
			ID:                key.ID.String(),
			Hash:              key.Hash,
			Alias:             key.Alias,
			Status:            string(key.Status),
			DeprecationReason: key.DeprecationReason,
		}
	}

	return response, nil
}
