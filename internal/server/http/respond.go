package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/txguard/internal/envelope"
	"github.com/and161185/txguard/internal/errs"
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type okBody struct {
	Success  bool                `json:"success"`
	Data     any                 `json:"data"`
	Security *envelope.Security `json:"_security,omitempty"`
}

// abortWithError renders err as a client-safe failure and stops the chain.
func abortWithError(c *gin.Context, err error) {
	e := errs.As(err)
	if e.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(e.Status, errorBody{Code: e.Code, Message: e.Message})
}

func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, okBody{Success: true, Data: data})
}

// writeEnvelope signs data and sends it with the envelope in the body and
// mirrored into X-Transaction-* headers.
func (s *Server) writeEnvelope(c *gin.Context, status int, data any) {
	env, err := s.envelopes.CreateSecureResponse(data, "")
	if err != nil {
		abortWithError(c, err)
		return
	}
	for k, v := range env.Headers() {
		c.Header(k, v)
	}
	sec := env.Security()
	c.JSON(status, okBody{Success: true, Data: env.Data, Security: &sec})
}
