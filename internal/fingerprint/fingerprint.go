// Package fingerprint derives stable cache keys from game state values.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Of returns the lowercase hex SHA-256 of state's canonical JSON encoding.
// encoding/json writes map keys in sorted order at every level, so states
// that are equal as values fingerprint identically whatever order their maps
// were built in.
func Of(state any) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MustOf is Of for states known to encode, such as plain maps and structs.
func MustOf(state any) string {
	fp, err := Of(state)
	if err != nil {
		panic(err)
	}
	return fp
}

// FromJSON fingerprints a JSON document. The document is decoded and
// re-encoded so whitespace and key order do not matter; numbers keep their
// literal text.
func FromJSON(doc []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var state any
	if err := dec.Decode(&state); err != nil {
		return "", fmt.Errorf("failed to decode state: %w", err)
	}
	if dec.More() {
		return "", fmt.Errorf("failed to decode state: trailing data after JSON value")
	}
	return Of(state)
}
