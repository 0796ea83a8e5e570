// Package convert maps domain models to and from the JSON API shapes.
package convert

import (
	"time"

	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	model "github.com/and161185/txguard/internal/model"
)

// CardRequest is the body of a card creation request.
type CardRequest struct {
	CardNumber     string `json:"cardNumber" binding:"required"`
	CVV            string `json:"cvv"`
	Expiry         string `json:"expiry" binding:"required"`
	CardholderName string `json:"cardholderName"`
	MakeDefault    bool   `json:"makeDefault"`
}

// CardView is the masked, client-safe view of a stored card.
type CardView struct {
	ID             string `json:"id"`
	MaskedNumber   string `json:"maskedNumber"`
	LastFour       string `json:"lastFour"`
	Brand          string `json:"brand"`
	CardholderName string `json:"cardholderName,omitempty"`
	IsDefault      bool   `json:"isDefault"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// DefaultCardView is a verified default card with its decrypted expiry.
type DefaultCardView struct {
	CardView
	Expiry string `json:"expiry,omitempty"`
}

// TokenView is returned by login.
type TokenView struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
	UserID      string `json:"userId"`
}

// ToCardInput converts a request body to a domain input.
func ToCardInput(r CardRequest) model.CardInput {
	return model.CardInput{
		CardNumber:     r.CardNumber,
		CVV:            r.CVV,
		Expiry:         r.Expiry,
		CardholderName: r.CardholderName,
	}
}

// ToCardView masks a stored card.
func ToCardView(rec model.CardRecord) CardView {
	v := CardView{
		ID:             rec.ID.String(),
		MaskedNumber:   pkgcrypto.MaskCardNumber(rec.Card.LastFourDigits),
		LastFour:       rec.Card.LastFourDigits,
		Brand:          string(rec.Card.CardBrand),
		CardholderName: rec.Card.CardholderName,
		IsDefault:      rec.IsDefault,
	}
	if !rec.CreatedAt.IsZero() {
		v.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// ToCardViews masks a list of stored cards. A nil input yields an empty slice.
func ToCardViews(recs []model.CardRecord) []CardView {
	out := make([]CardView, 0, len(recs))
	for _, r := range recs {
		out = append(out, ToCardView(r))
	}
	return out
}

// ToDefaultCardView combines the masked view with decrypted non-PAN fields.
// The full card number never leaves the server.
func ToDefaultCardView(rec model.CardRecord, data model.CardData) DefaultCardView {
	return DefaultCardView{CardView: ToCardView(rec), Expiry: data.Expiry}
}

// ToTokenView converts issued tokens.
func ToTokenView(t model.Tokens, u model.User) TokenView {
	return TokenView{
		AccessToken: t.AccessToken,
		ExpiresAt:   t.ExpiresAt.UTC().Format(time.RFC3339),
		UserID:      u.ID.String(),
	}
}
