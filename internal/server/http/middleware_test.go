package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging_MetadataOnly(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Logging(zap.New(core)))
	r.GET("/x/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x/42?card=4111111111111111", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	require.Equal(t, zapcore.InfoLevel, e.Level)
	f := e.ContextMap()
	require.Equal(t, "/x/:id", f["route"])
	require.EqualValues(t, http.StatusNoContent, f["status"])
	for _, v := range f {
		if s, ok := v.(string); ok {
			require.NotContains(t, s, "secret-token")
			require.NotContains(t, s, "4111111111111111")
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"Bearer abc":    "abc",
		"bearer   abc ": "abc",
		"Basic abc":     "",
		"Bearer ":       "",
		"":              "",
	} {
		got, ok := bearerToken(in)
		require.Equal(t, want, got, in)
		require.Equal(t, want != "", ok, in)
	}
}
