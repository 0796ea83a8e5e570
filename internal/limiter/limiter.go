// Package limiter throttles repeated failures of credential checks (login,
// step-up re-authentication) with a sliding window and a temporary lockout.
package limiter

import (
	"context"
	"time"
)

// Limiter controls attempts per subject and temporary lockouts. A subject is
// an opaque key such as "login:<username>" or "reauth:<user id>".
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and optional retry-after.
	Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful attempt.
	Success(ctx context.Context, subject string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
}

// Subject prefixes.
const (
	SubjectLogin  = "login:"
	SubjectReauth = "reauth:"
)

// AnyIP is the ip hash used when a lockout applies across all client addresses.
var AnyIP = []byte{}
