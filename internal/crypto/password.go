package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltSize is the per-user auth salt length.
	SaltSize = 16
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns Argon2id hash of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against expected Argon2id hash and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// VerifyPasswordContext runs VerifyPassword on its own goroutine so a caller
// can stop waiting when ctx ends. The hash itself still runs to completion.
func VerifyPasswordContext(ctx context.Context, password, salt, expected []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res := make(chan bool, 1)
	go func() { res <- VerifyPassword(password, salt, expected) }()
	select {
	case ok := <-res:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
