package knob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainKnobSet prefixes knob set hashes. The version suffix leaves room for
// a future change of the canonical form.
const DomainKnobSet = "rws/knobset/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex SHA-256 of the set's canonical form. Two sets
// with the same metadata and the same circuit deltas hash identically
// whatever their insertion order.
func ContentHash(s *Set) (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainKnobSet, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when the set is known to be valid.
func MustContentHash(s *Set) string {
	h, err := ContentHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
