package httpserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestWithUserID_And_UserIDFromCtx(t *testing.T) {
	t.Parallel()

	id, ok := UserIDFromCtx(context.Background())
	require.False(t, ok)
	require.Equal(t, uuid.Nil, id)
	require.Nil(t, principalFromCtx(context.Background()))

	want := uuid.Must(uuid.NewV4())
	ctx := WithUserID(context.Background(), want)
	got, ok := UserIDFromCtx(ctx)
	require.True(t, ok)
	require.Equal(t, want, got)
	require.Equal(t, want, principalFromCtx(ctx).UserID)

	bad := context.WithValue(context.Background(), userIDKey, "not-uuid")
	_, ok = UserIDFromCtx(bad)
	require.False(t, ok)

	_, ok = UserIDFromCtx(WithUserID(context.Background(), uuid.Nil))
	require.False(t, ok)
}
