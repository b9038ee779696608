/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package prova is a gateway for verifying zero-knowledge proofs against
// registered verification keys.
//
// The module ships two services:
//
// cmd/gateway-rest: The public REST gateway. It authenticates API keys,
// rate-limits clients, resolves verification keys by hash or alias,
// dispatches proofs to a verifier executor, and records on-chain anchoring
// events through internal machine endpoints.
//
// cmd/verifier-rest: The verifier executor. It loads a manifest describing
// the installed prover binaries, validates their checksums, and runs
// verifications in a sandboxed subprocess.
//
// Packages for embedding
//
// pkg/gateway/vk: Verification key registry with trust-state lifecycle
// (active, deprecated, revoked).
//
// pkg/gateway/verify: Proof verification orchestration and proof hashing.
//
// pkg/verifier/client: HTTP client for the verifier executor.
package prova
