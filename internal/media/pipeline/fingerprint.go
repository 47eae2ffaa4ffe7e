package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the content fingerprint of a normalized encoded
// buffer: a hex sha256 of the encoded bytes. Hashing the encoded bytes
// rather than the raw upload makes visually identical re-encodes of the
// same source collapse to one fingerprint.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
