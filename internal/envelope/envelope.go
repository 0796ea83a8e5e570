// Package envelope signs outbound responses into timestamped, nonce-tagged
// envelopes and enforces timestamp+nonce freshness on inbound requests.
//
// Inbound requests are not signed by clients: the signing secret never
// leaves the server. Requests are authenticated by the session and checked
// for freshness and replay only.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/nonce"
)

// Header names used on the wire.
const (
	HeaderTransactionID = "X-Transaction-Id"
	HeaderTimestamp     = "X-Transaction-Timestamp"
	HeaderNonce         = "X-Transaction-Nonce"
	HeaderSignature     = "X-Transaction-Signature"
	HeaderAlgorithm     = "X-Signature-Algorithm"
)

// Freshness windows. Responses travel one round trip; requests may queue
// behind client-side processing.
const (
	DefaultResponseWindow = 30 * time.Second
	DefaultRequestWindow  = 5 * time.Minute

	maxNonceLen = 256
)

// Envelope is a signed business payload.
type Envelope struct {
	Data          json.RawMessage `json:"data"`
	TransactionID string          `json:"transactionId"`
	Timestamp     int64           `json:"timestamp"`
	Nonce         string          `json:"nonce"`
	Signature     string          `json:"signature"`
	Algorithm     string          `json:"algorithm"`
}

// Security is the envelope metadata carried in the `_security` body field.
type Security struct {
	TransactionID string `json:"transactionId"`
	Timestamp     int64  `json:"timestamp"`
	Nonce         string `json:"nonce"`
	Signature     string `json:"signature"`
	Algorithm     string `json:"algorithm"`
}

// Security returns the envelope without its payload.
func (e Envelope) Security() Security {
	return Security{
		TransactionID: e.TransactionID,
		Timestamp:     e.Timestamp,
		Nonce:         e.Nonce,
		Signature:     e.Signature,
		Algorithm:     e.Algorithm,
	}
}

// Headers returns the response headers mirroring the envelope.
func (e Envelope) Headers() map[string]string {
	return map[string]string{
		HeaderTransactionID: e.TransactionID,
		HeaderTimestamp:     strconv.FormatInt(e.Timestamp, 10),
		HeaderNonce:         e.Nonce,
		HeaderSignature:     e.Signature,
		HeaderAlgorithm:     e.Algorithm,
	}
}

// Service creates and verifies envelopes.
type Service struct {
	signer         *crypto.Signer
	requests       *nonce.Guard
	responses      *nonce.Guard
	now            func() time.Time
	requestWindow  time.Duration
	responseWindow time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRequestWindow sets the inbound freshness tolerance.
func WithRequestWindow(d time.Duration) Option { return func(s *Service) { s.requestWindow = d } }

// WithResponseWindow sets the envelope freshness tolerance.
func WithResponseWindow(d time.Duration) Option { return func(s *Service) { s.responseWindow = d } }

// WithResponseReplayGuard makes Verify reject envelopes whose nonce was already seen.
func WithResponseReplayGuard(g *nonce.Guard) Option { return func(s *Service) { s.responses = g } }

// New constructs a Service. requests is the replay guard for inbound nonces.
func New(signer *crypto.Signer, requests *nonce.Guard, opts ...Option) *Service {
	s := &Service{
		signer:         signer,
		requests:       requests,
		now:            time.Now,
		requestWindow:  DefaultRequestWindow,
		responseWindow: DefaultResponseWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Canonicalize renders data as JSON with object keys sorted and numbers
// preserved verbatim, so semantically equal payloads sign identically.
func Canonicalize(data any) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return out, nil
}

func signingInput(txID string, ts int64, token string, data []byte) string {
	return txID + strconv.FormatInt(ts, 10) + token + string(data)
}

// CreateSecureResponse wraps data into a signed envelope. An empty
// transactionID is replaced with a freshly generated one.
func (s *Service) CreateSecureResponse(data any, transactionID string) (Envelope, error) {
	now := s.now()
	if transactionID == "" {
		id, err := crypto.GenerateSecureTransactionID(now)
		if err != nil {
			return Envelope{}, err
		}
		transactionID = id
	}
	n, err := crypto.GenerateNonce()
	if err != nil {
		return Envelope{}, err
	}
	canon, err := Canonicalize(data)
	if err != nil {
		return Envelope{}, err
	}
	ts := now.UnixMilli()
	return Envelope{
		Data:          canon,
		TransactionID: transactionID,
		Timestamp:     ts,
		Nonce:         n,
		Signature:     s.signer.GenerateHMAC(signingInput(transactionID, ts, n, canon)),
		Algorithm:     crypto.SignatureAlgorithm,
	}, nil
}

// Verify checks freshness, signature and (when a response guard is attached)
// nonce uniqueness, returning the matching taxonomy error on failure.
func (s *Service) Verify(env Envelope) error {
	if env.Algorithm != crypto.SignatureAlgorithm {
		return errs.ErrIntegrity
	}
	if !fresh(s.now(), env.Timestamp, s.responseWindow) {
		return errs.ErrTimestampInvalid
	}
	canon, err := Canonicalize(env.Data)
	if err != nil {
		return errs.ErrIntegrity
	}
	if !s.signer.VerifyHMAC(signingInput(env.TransactionID, env.Timestamp, env.Nonce, canon), env.Signature) {
		return errs.ErrIntegrity
	}
	if s.responses != nil && !s.responses.CheckAndAdd(env.Nonce) {
		return errs.ErrReplayDetected
	}
	return nil
}

// VerifySecureResponse reports whether env passes Verify.
func (s *Service) VerifySecureResponse(env Envelope) bool {
	return s.Verify(env) == nil
}

// VerifyRequest enforces inbound freshness from the raw timestamp and nonce
// header values and consumes the nonce on success.
func (s *Service) VerifyRequest(timestamp, token string) error {
	if timestamp == "" || token == "" || len(token) > maxNonceLen {
		return errs.ErrMissingSecurityHeaders
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errs.ErrTimestampInvalid
	}
	if !fresh(s.now(), ts, s.requestWindow) {
		return errs.ErrTimestampInvalid
	}
	if !s.requests.CheckAndAdd(token) {
		return errs.ErrReplayDetected
	}
	return nil
}

func fresh(now time.Time, tsMillis int64, window time.Duration) bool {
	// compared as bounds; now-ts overflows for extreme ts
	n, w := now.UnixMilli(), window.Milliseconds()
	return tsMillis >= n-w && tsMillis <= n+w
}
