// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
}

// EncryptionResult is the text-encoded output of a single AEAD encryption.
// The IV is fresh per call; the triple is consumed by exactly one decrypt.
type EncryptionResult struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
}

// CardBrand is the network detected from a card number prefix.
type CardBrand string

const (
	BrandVisa       CardBrand = "VISA"
	BrandMastercard CardBrand = "MASTERCARD"
	BrandAmex       CardBrand = "AMEX"
	BrandDiscover   CardBrand = "DISCOVER"
	BrandJCB        CardBrand = "JCB"
	BrandUnknown    CardBrand = "UNKNOWN"
)

// CardInput is the plaintext card as entered by the user.
// CVV is accepted for live use only and is never persisted.
type CardInput struct {
	CardNumber     string
	CVV            string
	Expiry         string // MM/YY
	CardholderName string
}

// EncryptedCard is the sealed bundle produced from a CardInput.
// Each sensitive field carries its own IV and tag.
type EncryptedCard struct {
	CardNumber     EncryptionResult `json:"encryptedCardNumber"`
	Expiry         EncryptionResult `json:"encryptedExpiry"`
	IntegrityHash  string           `json:"integrityHash"`
	LastFourDigits string           `json:"lastFourDigits"`
	CardBrand      CardBrand        `json:"cardBrand"`
	CardholderName string           `json:"cardholderName"`
}

// CardData is the decrypted view of a card: digits-only number and expiry.
type CardData struct {
	CardNumber string
	Expiry     string
}

// CardRecord is a persisted payment method.
type CardRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Card      EncryptedCard
	IsDefault bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Handling of a card record that fails integrity verification.
const (
	// CorruptionDelete hard-deletes the record.
	CorruptionDelete = "delete"
	// CorruptionDeactivate soft-deletes it and keeps the row for forensics.
	CorruptionDeactivate = "deactivate"
)
