// Package crypto implements the server-side primitives of the transaction
// security core: AES-256-GCM field encryption, keyless integrity hashing,
// HMAC signing and Argon2id password hashing.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/model"
)

// Parameters of the field cipher.
const (
	KeySize = 32 // AES-256
	IVSize  = 16
	TagSize = 16
)

// Cipher encrypts individual string fields with AES-256-GCM.
// It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher constructs a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: block cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (model.EncryptionResult, error) {
	iv, err := RandBytes(IVSize)
	if err != nil {
		return model.EncryptionResult{}, fmt.Errorf("crypto: iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - TagSize
	return model.EncryptionResult{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any malformed component or
// tag mismatch yields errs.ErrIntegrity; corrupted plaintext is never returned.
func (c *Cipher) Decrypt(ciphertext, iv, authTag string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errs.ErrIntegrity
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(nonce) != IVSize {
		return "", errs.ErrIntegrity
	}
	tag, err := base64.StdEncoding.DecodeString(authTag)
	if err != nil || len(tag) != TagSize {
		return "", errs.ErrIntegrity
	}
	buf := make([]byte, 0, len(ct)+len(tag))
	buf = append(buf, ct...)
	buf = append(buf, tag...)
	pt, err := c.aead.Open(nil, nonce, buf, nil)
	if err != nil {
		return "", errs.ErrIntegrity
	}
	return string(pt), nil
}

// DecryptResult is Decrypt over an EncryptionResult.
func (c *Cipher) DecryptResult(r model.EncryptionResult) (string, error) {
	return c.Decrypt(r.Ciphertext, r.IV, r.AuthTag)
}

// EncryptCardData validates and seals a card. Number and expiry are encrypted
// independently; the CVV is dropped and never enters the bundle.
func (c *Cipher) EncryptCardData(in model.CardInput) (model.EncryptedCard, error) {
	number := CleanCardNumber(in.CardNumber)
	if !ValidateCardNumber(number) {
		return model.EncryptedCard{}, errs.ErrInvalidCardNumber
	}
	encNumber, err := c.Encrypt(number)
	if err != nil {
		return model.EncryptedCard{}, err
	}
	encExpiry, err := c.Encrypt(strings.TrimSpace(in.Expiry))
	if err != nil {
		return model.EncryptedCard{}, err
	}
	card := model.EncryptedCard{
		CardNumber:     encNumber,
		Expiry:         encExpiry,
		LastFourDigits: number[len(number)-4:],
		CardBrand:      DetectCardBrand(number),
		CardholderName: strings.TrimSpace(in.CardholderName),
	}
	card.IntegrityHash = GenerateIntegrityHash(cardIntegrityPayload(card))
	return card, nil
}

// DecryptCardData verifies the bundle's integrity hash and only then decrypts it.
func (c *Cipher) DecryptCardData(card model.EncryptedCard) (model.CardData, error) {
	if !VerifyIntegrityHash(cardIntegrityPayload(card), card.IntegrityHash) {
		return model.CardData{}, errs.ErrIntegrity
	}
	number, err := c.DecryptResult(card.CardNumber)
	if err != nil {
		return model.CardData{}, fmt.Errorf("card number: %w", err)
	}
	expiry, err := c.DecryptResult(card.Expiry)
	if err != nil {
		return model.CardData{}, fmt.Errorf("card expiry: %w", err)
	}
	return model.CardData{CardNumber: number, Expiry: expiry}, nil
}

// cardIntegrityPayload concatenates the encrypted fields in a fixed order.
func cardIntegrityPayload(card model.EncryptedCard) string {
	n, e := card.CardNumber, card.Expiry
	return strings.Join([]string{n.Ciphertext, n.IV, n.AuthTag, e.Ciphertext, e.IV, e.AuthTag}, ":")
}
