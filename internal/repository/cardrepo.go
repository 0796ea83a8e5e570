package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/txguard/internal/model"
)

// CardRepository stores encrypted payment cards. Lookups return errs.ErrNotFound
// when no active row matches.
type CardRepository interface {
	// FindDefault returns the user's active default card.
	FindDefault(ctx context.Context, userID uuid.UUID) (*model.CardRecord, error)
	// GetByID returns an active card owned by userID.
	GetByID(ctx context.Context, userID, cardID uuid.UUID) (*model.CardRecord, error)
	// ListActive returns active cards, default first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.CardRecord, error)
	// Create inserts rec; if rec is default, the previous default is unset in the same transaction.
	Create(ctx context.Context, rec *model.CardRecord) error
	// Update rewrites rec's encrypted fields and flags with the same default handling as Create.
	Update(ctx context.Context, rec *model.CardRecord) error
	// SoftDelete deactivates a card, keeping the row.
	SoftDelete(ctx context.Context, userID, cardID uuid.UUID) error
	// Delete removes a card row permanently.
	Delete(ctx context.Context, cardID uuid.UUID) error
}
