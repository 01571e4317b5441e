package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher computes a deterministic content hash for any canonicalizable value.
type Hasher interface {
	Hash(v interface{}) (string, error)
}

// CanonicalHasher hashes the JCS canonical form of v with SHA-256.
type CanonicalHasher struct{}

func NewCanonicalHasher() *CanonicalHasher {
	return &CanonicalHasher{}
}

func (h *CanonicalHasher) Hash(v interface{}) (string, error) {
	b, err := CanonicalMarshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical serialization failed: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes hashes raw bytes directly, for content that is already
// canonical (e.g. a previously-hashed chain value being re-hashed).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
