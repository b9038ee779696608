/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vk

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var hashShape = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// IsHash reports whether the identifier has the shape of a content hash:
// a 64-hex-digit string, optionally 0x-prefixed, case-insensitive.
func IsHash(identifier string) bool {
	return hashShape.MatchString(identifier)
}

// NormalizeHash maps a hash-shaped identifier to its canonical form:
// 0x-prefixed, lowercase.
func NormalizeHash(hash string) string {
	normalized := strings.ToLower(hash)
	if !strings.HasPrefix(normalized, "0x") {
		normalized = "0x" + normalized
	}

	return normalized
}

// ComputeHash returns the content address of a key payload: the 0x-prefixed
// SHA-256 of its canonical JSON serialization. Canonical form sorts object keys
// lexicographically, strips insignificant whitespace and keeps number literals
// as written, so the hash is stable across implementations.
func ComputeHash(data json.RawMessage) (string, error) {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(canonical)

	return "0x" + hex.EncodeToString(digest[:]), nil
}

// CanonicalJSON returns the canonical serialization of a JSON document:
// object keys sorted lexicographically, insignificant whitespace stripped,
// number literals preserved as written.
func CanonicalJSON(data json.RawMessage) ([]byte, error) {
	return canonicalJSON(data)
}

func canonicalJSON(data json.RawMessage) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode key payload: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		buf.WriteByte('{')

		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			encodedKey, err := json.Marshal(key)
			if err != nil {
				return err
			}

			buf.Write(encodedKey)
			buf.WriteByte(':')

			if err := writeCanonical(buf, v[key]); err != nil {
				return err
			}
		}

		buf.WriteByte('}')

		return nil
	case []interface{}:
		buf.WriteByte('[')

		for i, element := range v {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := writeCanonical(buf, element); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil
	case json.Number:
		buf.WriteString(v.String())

		return nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}

		buf.Write(encoded)

		return nil
	}
}
