// Package sha256 computes attachment checksums.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags digests so stored checksums name their algorithm.
const Prefix = "sha256:"

// Hasher implements nepjol.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the prefixed hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
