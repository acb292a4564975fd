package hashing

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentHash returns the hex BLAKE2b-256 digest of a payload. Used for the
// photo integrity hash stored on attendance rows and for verifying stored
// reference images have not been tampered with.
func ContentHash(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// VerifyContentHash reports whether payload matches a previously recorded
// digest. An empty recorded digest passes: rows written before integrity
// hashing was introduced carry none.
func VerifyContentHash(payload []byte, recorded string) bool {
	if recorded == "" {
		return true
	}
	return ContentHash(payload) == recorded
}
