package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/and161185/txguard/internal/audit"
	"github.com/and161185/txguard/internal/errs"
)

// HeaderForwardedProto is the proxy header carrying the client-facing scheme.
const HeaderForwardedProto = "X-Forwarded-Proto"

// ChannelPolicy configures secure-channel enforcement.
type ChannelPolicy struct {
	// Production disables the development bypass.
	Production bool
	// TrustProxy accepts X-Forwarded-Proto: https as proof of a secure channel.
	TrustProxy bool
}

// ChannelEnforcer rejects sensitive requests that did not arrive over TLS.
type ChannelEnforcer struct {
	policy ChannelPolicy
	audit  audit.Recorder
}

// NewChannelEnforcer constructs a ChannelEnforcer.
func NewChannelEnforcer(p ChannelPolicy, rec audit.Recorder) *ChannelEnforcer {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &ChannelEnforcer{policy: p, audit: rec}
}

// RequireSecureChannel admits local and development traffic unconditionally;
// otherwise it requires TLS (or a trusted proxy's https marker) and rejects an
// explicit non-https forwarded scheme as a downgrade.
//
// Local means both the Host header and the connected peer are loopback, so a
// remote client cannot claim locality by forging Host.
func (c *ChannelEnforcer) RequireSecureChannel(ctx context.Context, r Request) error {
	if isLoopback(r.Host) && isLoopback(r.PeerAddr) {
		return nil
	}
	if !c.policy.Production {
		return nil
	}

	proto := forwardedProto(r.Header)
	if proto != "" && proto != "https" {
		c.audit.Record(ctx, audit.Event{
			Type:     audit.EventProtocolDowngrade,
			Severity: audit.SeverityHigh,
			IP:       r.ClientIP,
			Path:     r.Path,
			Detail:   "forwarded proto " + proto,
		})
		return errs.ErrProtocolDowngrade
	}

	if r.TLS || (c.policy.TrustProxy && proto == "https") {
		return nil
	}
	c.audit.Record(ctx, audit.Event{
		Type:     audit.EventInsecureChannel,
		Severity: audit.SeverityMedium,
		IP:       r.ClientIP,
		Path:     r.Path,
	})
	return errs.ErrInsecureChannel
}

// forwardedProto returns the lower-cased first scheme of X-Forwarded-Proto.
func forwardedProto(h http.Header) string {
	v := h.Get(HeaderForwardedProto)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

var transactionHeaders = map[string]string{
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains; preload",
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Cache-Control":             "no-store, no-cache, must-revalidate, private",
	"Pragma":                    "no-cache",
	"Expires":                   "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "geolocation=(), camera=(), microphone=(), payment=(self)",
}

// ApplyTransactionHeaders sets the fixed hardening headers on h.
func ApplyTransactionHeaders(h http.Header) {
	for k, v := range transactionHeaders {
		h.Set(k, v)
	}
}

// TransactionHeaders returns a copy of the hardening header set.
func TransactionHeaders() map[string]string {
	out := make(map[string]string, len(transactionHeaders))
	for k, v := range transactionHeaders {
		out[k] = v
	}
	return out
}
