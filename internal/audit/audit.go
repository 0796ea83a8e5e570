// Package audit records security events with a severity gradient.
package audit

import (
	"context"

	"go.uber.org/zap"
)

// Severity grades a security event from expected edge case to detected attack.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event types emitted by the security core.
const (
	EventInsecureChannel   = "insecure_channel"
	EventProtocolDowngrade = "protocol_downgrade"
	EventMissingHeaders    = "missing_security_headers"
	EventTimestampInvalid  = "timestamp_invalid"
	EventReplayDetected    = "replay_detected"
	EventReauthMissing     = "reauth_missing"
	EventReauthFailed      = "reauth_failed"
	EventReauthSucceeded   = "reauth_succeeded"
	EventReauthLocked      = "reauth_locked"
	EventCardCorrupted     = "card_data_corrupted"
)

// Event is a single security-relevant occurrence.
type Event struct {
	Type     string
	Severity Severity
	UserID   string
	IP       string
	Path     string
	Detail   string
}

// Recorder persists or forwards security events. Implementations must not
// block the caller's response path.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// ZapRecorder writes events to a zap logger.
type ZapRecorder struct {
	log *zap.Logger
}

// NewZapRecorder constructs a recorder backed by log.
func NewZapRecorder(log *zap.Logger) *ZapRecorder {
	return &ZapRecorder{log: log.Named("audit")}
}

// Record logs e at a level derived from its severity.
func (r *ZapRecorder) Record(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event", e.Type),
		zap.String("severity", string(e.Severity)),
	}
	if e.UserID != "" {
		fields = append(fields, zap.String("user_id", e.UserID))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.Path != "" {
		fields = append(fields, zap.String("path", e.Path))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}

	switch e.Severity {
	case SeverityLow:
		r.log.Info("security event", fields...)
	case SeverityMedium:
		r.log.Warn("security event", fields...)
	default:
		r.log.Error("security event", fields...)
	}
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}
