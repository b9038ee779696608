/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package api defines the wire protocol between the gateway and a verifier
// executor. The protocol is versioned by path prefix and carried as JSON
// over HTTP.
package api

// HealthPath is the executor liveness endpoint.
const HealthPath = "/health"

// VerifyPath is the executor proof verification endpoint.
const VerifyPath = "/verify"

// HealthResponse reports executor liveness and the underlying prover version.
type HealthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

// VerifyRequest carries a proof to the executor. Proof bytes are base64
// encoded by the JSON codec; public inputs stay opaque strings.
type VerifyRequest struct {
	Proof        []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs,omitempty"`
	ProofSystem  string   `json:"proof_system"`
}

// VerifyResponse is the executor's verdict. Valid=false with a populated
// Error is a completed verification of an invalid proof, not a transport
// failure.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	ProverVersion string `json:"prover_version"`
	Error         string `json:"error,omitempty"`
}
