package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashHex is sha256 over the concatenation of parts, lowercase hex.
func HashHex(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Commitment binds a peer to payload before it is revealed. payload must be the canonical
// serialization both peers agree on.
func Commitment(payload []byte, salt string) string {
	return HashHex(payload, []byte(salt))
}

// NewSalt returns an unpredictable 32-byte salt, hex encoded.
func NewSalt() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
