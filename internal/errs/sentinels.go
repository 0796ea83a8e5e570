// Package errs holds the error vocabulary shared by storage, services and
// transport: plain sentinels for storage and auth outcomes, and the
// client-safe *Error taxonomy for security rejections.
package errs

import "errors"

// Storage and authentication outcomes. Transport maps them through As.
var (
	// ErrNotFound means no row matched.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a unique constraint rejected the write.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized means credentials or a token did not verify.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited means the attempt limiter is blocking the subject.
	ErrRateLimited = errors.New("rate limited")
)
