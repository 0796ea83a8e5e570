package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/model"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := RandBytes(KeySize)
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestNewCipher_RejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 16, 31, 33} {
		_, err := NewCipher(make([]byte, n))
		require.Error(t, err, "len=%d", n)
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	inputs := []string{
		"",
		"4111111111111111",
		"héllo wörld ✓ 支付 🔐",
		strings.Repeat("large payload ", 10_000),
	}
	for _, pt := range inputs {
		res, err := c.Encrypt(pt)
		require.NoError(t, err)

		iv, err := base64.StdEncoding.DecodeString(res.IV)
		require.NoError(t, err)
		require.Len(t, iv, IVSize)
		tag, err := base64.StdEncoding.DecodeString(res.AuthTag)
		require.NoError(t, err)
		require.Len(t, tag, TagSize)

		got, err := c.Decrypt(res.Ciphertext, res.IV, res.AuthTag)
		require.NoError(t, err)
		require.Equal(t, pt, got)
	}
}

func TestEncrypt_FreshIVAndCiphertext(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	ivs := make(map[string]struct{}, 1000)
	cts := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		res, err := c.Encrypt("same plaintext")
		require.NoError(t, err)
		_, dupIV := ivs[res.IV]
		_, dupCT := cts[res.Ciphertext]
		require.False(t, dupIV, "iv reused at trial %d", i)
		require.False(t, dupCT, "ciphertext reused at trial %d", i)
		ivs[res.IV] = struct{}{}
		cts[res.Ciphertext] = struct{}{}
	}
}

func TestDecrypt_DetectsTampering(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	a, err := c.Encrypt("sensitive payment field")
	require.NoError(t, err)
	b, err := c.Encrypt("sensitive payment field")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(a.Ciphertext)
	require.NoError(t, err)
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 1 << bit
			_, err := c.Decrypt(base64.StdEncoding.EncodeToString(flipped), a.IV, a.AuthTag)
			require.ErrorIs(t, err, errs.ErrIntegrity, "byte %d bit %d", i, bit)
		}
	}

	_, err = c.Decrypt(a.Ciphertext, a.IV, b.AuthTag)
	require.ErrorIs(t, err, errs.ErrIntegrity, "foreign tag")
	_, err = c.Decrypt(a.Ciphertext, b.IV, a.AuthTag)
	require.ErrorIs(t, err, errs.ErrIntegrity, "foreign iv")

	_, err = c.Decrypt("%%%", a.IV, a.AuthTag)
	require.ErrorIs(t, err, errs.ErrIntegrity, "malformed ciphertext")
	_, err = c.Decrypt(a.Ciphertext, base64.StdEncoding.EncodeToString([]byte("short")), a.AuthTag)
	require.ErrorIs(t, err, errs.ErrIntegrity, "short iv")
	_, err = c.Decrypt(a.Ciphertext, a.IV, "")
	require.ErrorIs(t, err, errs.ErrIntegrity, "missing tag")
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()
	c1 := newTestCipher(t)
	c2 := newTestCipher(t)

	res, err := c1.Encrypt("x")
	require.NoError(t, err)
	_, err = c2.DecryptResult(res)
	require.ErrorIs(t, err, errs.ErrIntegrity)
}

func TestCardData_EndToEnd(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	card, err := c.EncryptCardData(model.CardInput{
		CardNumber:     "4111 1111 1111 1111",
		CVV:            "123",
		Expiry:         "12/25",
		CardholderName: "Jane Doe",
	})
	require.NoError(t, err)
	require.Equal(t, "1111", card.LastFourDigits)
	require.Equal(t, model.BrandVisa, card.CardBrand)
	require.Equal(t, "Jane Doe", card.CardholderName)
	require.NotEmpty(t, card.IntegrityHash)
	require.NotEqual(t, card.CardNumber.IV, card.Expiry.IV)

	data, err := c.DecryptCardData(card)
	require.NoError(t, err)
	require.Equal(t, "4111111111111111", data.CardNumber)
	require.Equal(t, "12/25", data.Expiry)

	raw, err := base64.StdEncoding.DecodeString(card.CardNumber.Ciphertext)
	require.NoError(t, err)
	raw[0] ^= 0xff
	corrupted := card
	corrupted.CardNumber.Ciphertext = base64.StdEncoding.EncodeToString(raw)
	_, err = c.DecryptCardData(corrupted)
	require.ErrorIs(t, err, errs.ErrIntegrity)
}

func TestCardData_CVVNeverSealed(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	card, err := c.EncryptCardData(model.CardInput{CardNumber: "5555555555554444", CVV: "987", Expiry: "01/30"})
	require.NoError(t, err)
	for _, r := range []model.EncryptionResult{card.CardNumber, card.Expiry} {
		pt, err := c.DecryptResult(r)
		require.NoError(t, err)
		require.NotContains(t, pt, "987")
	}
}

func TestDecryptCardData_HashCheckedBeforeDecrypt(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	card, err := c.EncryptCardData(model.CardInput{CardNumber: "378282246310005", Expiry: "08/29"})
	require.NoError(t, err)

	card.IntegrityHash = GenerateIntegrityHash("something else")
	_, err = c.DecryptCardData(card)
	require.ErrorIs(t, err, errs.ErrIntegrity)
	require.Equal(t, "INTEGRITY_ERROR: Data integrity verification failed", err.Error())

	// a hash that verifies over a ciphertext that does not still fails at the tag
	card2, err := c.EncryptCardData(model.CardInput{CardNumber: "378282246310005", Expiry: "08/29"})
	require.NoError(t, err)
	card2.CardNumber.AuthTag = card2.Expiry.AuthTag
	card2.IntegrityHash = GenerateIntegrityHash(cardIntegrityPayload(card2))
	_, err = c.DecryptCardData(card2)
	require.True(t, errors.Is(err, errs.ErrIntegrity))
}

func TestEncryptCardData_RejectsInvalidNumber(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	_, err := c.EncryptCardData(model.CardInput{CardNumber: "4111111111111112", Expiry: "12/30"})
	require.ErrorIs(t, err, errs.ErrInvalidCardNumber)
}
