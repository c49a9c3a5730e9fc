package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLength is the length of a fingerprint string (SHA-256, hex encoded).
const HexLength = 64

// Compute returns the content fingerprint for the given bytes: the lowercase
// hex SHA-256 digest of the full content. Identical bytes always produce the
// same fingerprint; the empty input is valid and hashes like any other value.
func Compute(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
