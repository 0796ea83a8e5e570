package security

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/txguard/internal/audit"
	"github.com/and161185/txguard/internal/errs"
)

// HeaderReauthPassword carries the step-up credential.
const HeaderReauthPassword = "X-Reauth-Password"

// CredentialChecker verifies a fresh credential for an authenticated user.
// It returns errs.ErrUserNotFound, errs.ErrReauthFailed or errs.ErrRateLimited
// on rejection.
type CredentialChecker interface {
	ReAuthenticate(ctx context.Context, userID uuid.UUID, password, ip string) error
}

// StepUp gates high-risk operations behind a re-supplied password.
type StepUp struct {
	creds CredentialChecker
	audit audit.Recorder
	log   *zap.Logger
}

// NewStepUp constructs a StepUp.
func NewStepUp(creds CredentialChecker, rec audit.Recorder, log *zap.Logger) *StepUp {
	if rec == nil {
		rec = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StepUp{creds: creds, audit: rec, log: log}
}

// Require fails unless the request carries a principal and a credential that
// verifies against the principal's stored password hash. On success the
// returned context is marked re-authenticated.
func (s *StepUp) Require(ctx context.Context, r Request) (context.Context, error) {
	if r.Principal == nil || r.Principal.UserID == uuid.Nil {
		return ctx, errs.ErrAuthRequired
	}
	uid := r.Principal.UserID.String()

	password := r.Header.Get(HeaderReauthPassword)
	if strings.TrimSpace(password) == "" {
		s.audit.Record(ctx, audit.Event{
			Type: audit.EventReauthMissing, Severity: audit.SeverityLow,
			UserID: uid, IP: r.ClientIP, Path: r.Path,
		})
		return ctx, errs.ErrReauthRequired
	}

	err := s.creds.ReAuthenticate(ctx, r.Principal.UserID, password, r.ClientIP)
	switch {
	case err == nil:
		s.audit.Record(ctx, audit.Event{
			Type: audit.EventReauthSucceeded, Severity: audit.SeverityLow,
			UserID: uid, IP: r.ClientIP, Path: r.Path,
		})
		return WithReauthenticated(ctx, true), nil
	case errors.Is(err, errs.ErrReauthFailed):
		s.audit.Record(ctx, audit.Event{
			Type: audit.EventReauthFailed, Severity: audit.SeverityHigh,
			UserID: uid, IP: r.ClientIP, Path: r.Path,
		})
		return ctx, errs.ErrReauthFailed
	case errors.Is(err, errs.ErrRateLimited):
		s.audit.Record(ctx, audit.Event{
			Type: audit.EventReauthLocked, Severity: audit.SeverityHigh,
			UserID: uid, IP: r.ClientIP, Path: r.Path,
		})
		return ctx, err
	case errors.Is(err, errs.ErrUserNotFound):
		return ctx, errs.ErrUserNotFound
	default:
		s.log.Error("reauth check failed", zap.String("user_id", uid), zap.Error(err))
		return ctx, err
	}
}

// Optional behaves like Require but never rejects. The returned context is
// marked with the outcome.
func (s *StepUp) Optional(ctx context.Context, r Request) context.Context {
	if r.Principal == nil || r.Header.Get(HeaderReauthPassword) == "" {
		return WithReauthenticated(ctx, false)
	}
	out, err := s.Require(ctx, r)
	if err != nil {
		return WithReauthenticated(ctx, false)
	}
	return out
}
