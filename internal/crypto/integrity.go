package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// GenerateIntegrityHash returns the hex SHA-256 of data. It is keyless and
// detects accidental corruption; authenticity comes from the AEAD tag.
func GenerateIntegrityHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrityHash recomputes the digest and compares it in constant time.
func VerifyIntegrityHash(data, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	sum := sha256.Sum256([]byte(data))
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}
