package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/txguard/internal/audit"
	"github.com/and161185/txguard/internal/envelope"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/security"
)

// Logging logs request metadata. Bodies and headers are never logged.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		}
		if err := c.Errors.Last(); err != nil {
			fields = append(fields, zap.Error(err.Err))
			log.Error("http", fields...)
			return
		}
		log.Info("http", fields...)
	}
}

// Recover converts panics into a generic 500 response.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("route", c.FullPath()),
				)
				abortWithError(c, errors.New("panic"))
			}
		}()
		c.Next()
	}
}

// TransactionHeaders sets the hardening headers on every response.
func TransactionHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		security.ApplyTransactionHeaders(c.Writer.Header())
		c.Next()
	}
}

// requestView builds the transport-neutral request for security checks.
func requestView(c *gin.Context) security.Request {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return security.Request{
		Header:    c.Request.Header,
		Host:      c.Request.Host,
		PeerAddr:  c.Request.RemoteAddr,
		ClientIP:  c.ClientIP(),
		Path:      path,
		TLS:       c.Request.TLS != nil,
		Principal: principalFromCtx(c.Request.Context()),
	}
}

// RequireAuth resolves the bearer access token into a principal.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, errs.ErrAuthRequired)
			return
		}
		id, err := s.auth.VerifyAccessToken(tok)
		if err != nil {
			abortWithError(c, errs.ErrAuthRequired)
			return
		}
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), id))
		c.Next()
	}
}

func bearerToken(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	return t, t != ""
}

// SecureChannel rejects sensitive requests that did not arrive over TLS.
func (s *Server) SecureChannel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.channel.RequireSecureChannel(c.Request.Context(), requestView(c)); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequestIntegrity enforces timestamp freshness and single-use nonces.
func (s *Server) RequestIntegrity() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.envelopes.VerifyRequest(c.GetHeader(envelope.HeaderTimestamp), c.GetHeader(envelope.HeaderNonce))
		if err != nil {
			s.recordIntegrityFailure(c, err)
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) recordIntegrityFailure(c *gin.Context, err error) {
	ev := audit.Event{IP: c.ClientIP(), Path: c.FullPath()}
	if id, ok := UserIDFromCtx(c.Request.Context()); ok {
		ev.UserID = id.String()
	}
	switch {
	case errors.Is(err, errs.ErrReplayDetected):
		ev.Type, ev.Severity = audit.EventReplayDetected, audit.SeverityCritical
	case errors.Is(err, errs.ErrTimestampInvalid):
		ev.Type, ev.Severity = audit.EventTimestampInvalid, audit.SeverityMedium
	default:
		ev.Type, ev.Severity = audit.EventMissingHeaders, audit.SeverityLow
	}
	s.audit.Record(c.Request.Context(), ev)
}

// StepUp requires a fresh password in the re-auth header.
func (s *Server) StepUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := s.stepUp.Require(c.Request.Context(), requestView(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalStepUp records whether a valid re-auth credential was supplied.
func (s *Server) OptionalStepUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(s.stepUp.Optional(c.Request.Context(), requestView(c)))
		c.Next()
	}
}

// noRoute renders unknown routes in the API error shape.
func noRoute(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "Route not found"})
}
