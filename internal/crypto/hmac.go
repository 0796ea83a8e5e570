package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureAlgorithm names the keyed hash used by Signer.
const SignatureAlgorithm = "HMAC-SHA256"

// Signer computes and verifies HMAC-SHA256 signatures with a fixed secret.
type Signer struct {
	key []byte
}

// NewSigner constructs a Signer. The key is copied.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, errors.New("crypto: empty hmac key")
	}
	return &Signer{key: append([]byte(nil), key...)}, nil
}

// Sign returns the raw MAC of data.
func (s *Signer) Sign(data []byte) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write(data)
	return m.Sum(nil)
}

// GenerateHMAC returns the hex MAC of the UTF-8 bytes of data.
func (s *Signer) GenerateHMAC(data string) string {
	return hex.EncodeToString(s.Sign([]byte(data)))
}

// VerifyHMAC reports whether mac is the hex MAC of data. Malformed or
// wrong-length input yields false.
func (s *Signer) VerifyHMAC(data, mac string) bool {
	got, err := hex.DecodeString(mac)
	if err != nil {
		return false
	}
	return hmac.Equal(s.Sign([]byte(data)), got)
}
