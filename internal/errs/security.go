package errs

import (
	"errors"
	"net/http"
)

// Error is a client-safe failure with a stable machine-readable code.
// Message never carries key material, ciphertext or nonce-cache state.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newErr(status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg}
}

// Security taxonomy.
var (
	// ErrIntegrity reports tamper or corruption (auth tag or integrity hash mismatch).
	ErrIntegrity = newErr(http.StatusBadRequest, "INTEGRITY_ERROR", "Data integrity verification failed")

	ErrInsecureChannel   = newErr(http.StatusForbidden, "HTTPS_REQUIRED", "A secure connection is required for this operation")
	ErrProtocolDowngrade = newErr(http.StatusForbidden, "PROTOCOL_DOWNGRADE", "Protocol downgrade detected")

	ErrMissingSecurityHeaders = newErr(http.StatusBadRequest, "MISSING_SECURITY_HEADERS", "Transaction timestamp and nonce headers are required")
	ErrTimestampInvalid       = newErr(http.StatusBadRequest, "INVALID_TIMESTAMP", "Transaction timestamp is outside the accepted window")
	ErrReplayDetected         = newErr(http.StatusBadRequest, "REPLAY_DETECTED", "This request has already been processed")

	ErrAuthRequired   = newErr(http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required")
	ErrReauthRequired = newErr(http.StatusForbidden, "REAUTH_REQUIRED", "Password confirmation required for this operation")
	ErrUserNotFound   = newErr(http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	ErrReauthFailed   = newErr(http.StatusUnauthorized, "REAUTH_FAILED", "Password confirmation failed")

	ErrInvalidCardNumber = newErr(http.StatusBadRequest, "INVALID_CARD_NUMBER", "Invalid card number")
	ErrInvalidExpiry     = newErr(http.StatusBadRequest, "INVALID_EXPIRY", "Invalid or expired card expiry date")
	ErrCardNotFound      = newErr(http.StatusNotFound, "CARD_NOT_FOUND", "Payment method not found")

	errInternal    = newErr(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	errRateLimited = newErr(http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, try again later")
	errBadCreds    = newErr(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	errConflict    = newErr(http.StatusConflict, "ALREADY_EXISTS", "Resource already exists")
	errNotFound    = newErr(http.StatusNotFound, "NOT_FOUND", "Not found")
)

// As maps any error to a client-facing *Error. Unknown errors become a
// generic 500 so internal details do not leak.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return errRateLimited
	case errors.Is(err, ErrUnauthorized):
		return errBadCreds
	case errors.Is(err, ErrAlreadyExists):
		return errConflict
	case errors.Is(err, ErrNotFound):
		return errNotFound
	}
	return errInternal
}

// BadRequest builds a 400 validation error with the given message.
func BadRequest(msg string) *Error {
	return newErr(http.StatusBadRequest, "VALIDATION_ERROR", msg)
}
