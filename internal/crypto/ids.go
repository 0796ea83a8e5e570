package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NonceSize is the size of a request/envelope nonce in bytes (128 bits).
const NonceSize = 16

// GenerateEncryptionKey returns 256 random bits hex-encoded.
func GenerateEncryptionKey() (string, error) {
	b, err := RandBytes(KeySize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateNonce returns a hex-encoded 128-bit random token.
func GenerateNonce() (string, error) {
	b, err := RandBytes(NonceSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateTransactionID returns "TXN-<base36 millis>-<hex random>".
func GenerateTransactionID(now time.Time) (string, error) {
	return transactionID("TXN", now, 8)
}

// GenerateSecureTransactionID returns an uppercased "STXN-<base36 millis>-<hex random>".
func GenerateSecureTransactionID(now time.Time) (string, error) {
	id, err := transactionID("STXN", now, 16)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(id), nil
}

func transactionID(prefix string, now time.Time, n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return prefix + "-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + hex.EncodeToString(b), nil
}

// ParseKey decodes a configured 256-bit key given either as 64 hex
// characters or as exactly 32 raw bytes.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("crypto: empty key")
	}
	if len(s) == 2*KeySize {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if len(s) == KeySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("crypto: key must be %d hex chars or %d bytes", 2*KeySize, KeySize)
}
