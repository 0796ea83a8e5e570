package crypto

import (
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateEncryptionKey(t *testing.T) {
	t.Parallel()

	k, err := GenerateEncryptionKey()
	require.NoError(t, err)
	require.Len(t, k, 64)
	raw, err := hex.DecodeString(k)
	require.NoError(t, err)
	require.Len(t, raw, KeySize)

	parsed, err := ParseKey(k)
	require.NoError(t, err)
	require.Equal(t, raw, parsed)
}

func TestGenerateTransactionIDs(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_760_000_000_000)
	ts := strconv.FormatInt(now.UnixMilli(), 36)

	id, err := GenerateTransactionID(now)
	require.NoError(t, err)
	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	require.Equal(t, "TXN", parts[0])
	require.Equal(t, ts, parts[1])
	_, err = hex.DecodeString(parts[2])
	require.NoError(t, err)

	sid, err := GenerateSecureTransactionID(now)
	require.NoError(t, err)
	require.Equal(t, strings.ToUpper(sid), sid)
	require.True(t, strings.HasPrefix(sid, "STXN-"+strings.ToUpper(ts)+"-"))

	other, err := GenerateSecureTransactionID(now)
	require.NoError(t, err)
	require.NotEqual(t, sid, other)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	raw, err := ParseKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err, "32 raw bytes")
	require.Len(t, raw, KeySize)

	_, err = ParseKey("")
	require.Error(t, err)
	_, err = ParseKey("too-short")
	require.Error(t, err)
	_, err = ParseKey(strings.Repeat("zz", 32))
	require.Error(t, err, "64 chars that are not hex")
}

func TestIntegrityHash(t *testing.T) {
	t.Parallel()

	h := GenerateIntegrityHash("payload")
	require.Len(t, h, 64)
	require.Equal(t, h, GenerateIntegrityHash("payload"))
	require.True(t, VerifyIntegrityHash("payload", h))
	require.False(t, VerifyIntegrityHash("payloaD", h))
	require.False(t, VerifyIntegrityHash("payload", h[:62]))
	require.False(t, VerifyIntegrityHash("payload", "not hex"))
}
