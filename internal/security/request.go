// Package security holds the perimeter checks of the transaction core:
// secure-channel enforcement, response hardening headers and step-up
// re-authentication. Checks operate on a transport-neutral Request and
// return *errs.Error values on rejection.
package security

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/and161185/txguard/internal/model"
)

// Request is the normalized view of an inbound request.
type Request struct {
	Header    http.Header
	Host      string // Host header, possibly with port
	PeerAddr  string // address of the directly connected peer
	ClientIP  string // best-effort client address for auditing
	Path      string
	TLS       bool // connection terminated TLS in this process
	Principal *model.Principal
}

// hostname strips an optional port from h.
func hostname(h string) string {
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return strings.Trim(h, "[]")
}

func isLoopback(h string) bool {
	h = hostname(h)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

type ctxKey string

const reauthKey ctxKey = "txguard.reauthenticated"

// WithReauthenticated marks ctx as carrying a verified step-up credential.
func WithReauthenticated(ctx context.Context, ok bool) context.Context {
	return context.WithValue(ctx, reauthKey, ok)
}

// IsReauthenticated reports whether the request was re-authenticated.
func IsReauthenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(reauthKey).(bool)
	return ok
}
