// Package sha256 names archived pages by the digest of their raw body, so a
// page fetched twice on the same day lands on the same object.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements volume.Hasher.
type Hasher struct{}

func New() *Hasher { return &Hasher{} }

// Hash never fails; the error satisfies volume.Hasher.
func (*Hasher) Hash(page []byte) (string, error) {
	return Digest(page), nil
}

// Digest returns the lowercase hex SHA-256 of page.
func Digest(page []byte) string {
	sum := sha256.Sum256(page)
	return hex.EncodeToString(sum[:])
}
