/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verify

import (
	"crypto/sha256"
	"encoding/hex"
)

// ProofHash fingerprints a submitted proof: the 0x-prefixed SHA-256 of the
// proof's serialized bytes followed by each public input string in order.
func ProofHash(proofJSON []byte, publicInputs []string) string {
	hasher := sha256.New()
	hasher.Write(proofJSON)

	for _, input := range publicInputs {
		hasher.Write([]byte(input))
	}

	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

// PublicInputsHash fingerprints the public inputs alone. A request without
// public inputs has no inputs hash.
func PublicInputsHash(publicInputs []string) string {
	if publicInputs == nil {
		return ""
	}

	hasher := sha256.New()

	for _, input := range publicInputs {
		hasher.Write([]byte(input))
	}

	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}
