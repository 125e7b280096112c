package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sum computes the hex SHA-256 digest of a JSON payload's canonical form.
// The payload is decoded and re-encoded so that key order and whitespace
// differences between nodes do not change the digest (encoding/json
// marshals map keys in sorted order).
//
// A nil or empty payload (DELETE entries) hashes the JSON literal null.
func Sum(payload json.RawMessage) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// Canonicalize returns the canonical JSON encoding of payload.
func Canonicalize(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		return []byte("null"), nil
	}

	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	return canonical, nil
}

// Verify reports whether payload hashes to the expected digest.
func Verify(payload json.RawMessage, expected string) bool {
	actual, err := Sum(payload)
	if err != nil {
		return false
	}
	return actual == expected
}
