package httpserver

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/txguard/internal/model"
)

type ctxKey string

const userIDKey ctxKey = "txguard.userID"

// WithUserID stores authenticated user ID in context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// principalFromCtx returns the authenticated principal, or nil.
func principalFromCtx(ctx context.Context) *model.Principal {
	id, ok := UserIDFromCtx(ctx)
	if !ok {
		return nil
	}
	return &model.Principal{UserID: id}
}
