package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAs_PassesThroughTaxonomy(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("decrypt card: %w", ErrIntegrity)
	got := As(wrapped)
	require.Same(t, ErrIntegrity, got)
	require.True(t, errors.Is(wrapped, ErrIntegrity))
	require.Equal(t, http.StatusBadRequest, got.Status)
}

func TestAs_MapsSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     error
		status int
		code   string
	}{
		{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{fmt.Errorf("login: %w", ErrUnauthorized), http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("pg: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		got := As(tc.in)
		require.Equal(t, tc.status, got.Status, tc.in.Error())
		require.Equal(t, tc.code, got.Code, tc.in.Error())
	}
	require.Nil(t, As(nil))
}

func TestAs_InternalHidesDetails(t *testing.T) {
	t.Parallel()

	got := As(errors.New("key=deadbeef"))
	require.NotContains(t, got.Message, "deadbeef")
	require.NotContains(t, got.Error(), "deadbeef")
}
