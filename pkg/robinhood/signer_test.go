package robinhood

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestNewSignerFromSeed(t *testing.T) {
	seed := testSeed()
	signer, err := NewSigner("api-key", base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)

	expected := ed25519.NewKeyFromSeed(seed)
	assert.True(t, expected.Equal(signer.key))
}

func TestNewSignerFromFullKey(t *testing.T) {
	full := ed25519.NewKeyFromSeed(testSeed())
	signer, err := NewSigner("api-key", base64.StdEncoding.EncodeToString(full))
	require.NoError(t, err)
	assert.True(t, full.Equal(signer.key))
}

func TestNewSignerErrors(t *testing.T) {
	_, err := NewSigner("", "key")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSigner("api-key", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewSigner("api-key", "not base64!!!")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	// 长度既不是种子也不是完整私钥
	_, err = NewSigner("api-key", base64.StdEncoding.EncodeToString(make([]byte, 16)))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestSignerHeaders(t *testing.T) {
	seed := testSeed()
	signer, err := NewSigner("api-key", base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := `{"symbol":"BTC-USD"}`
	headers := signer.Headers("POST", "/api/v1/crypto/trading/orders/", body, at)

	assert.Equal(t, "api-key", headers["x-api-key"])
	assert.Equal(t, "1748779200", headers["x-timestamp"])

	signature, err := base64.StdEncoding.DecodeString(headers["x-signature"])
	require.NoError(t, err)

	key := ed25519.NewKeyFromSeed(seed)
	message := "api-key" + headers["x-timestamp"] + "/api/v1/crypto/trading/orders/" + "POST" + body
	assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), []byte(message), signature))
}

func TestSignerHeadersTimestampIsUTC(t *testing.T) {
	signer, err := NewSigner("api-key", base64.StdEncoding.EncodeToString(testSeed()))
	require.NoError(t, err)

	loc := time.FixedZone("UTC+8", 8*3600)
	at := time.Date(2025, 6, 1, 20, 0, 0, 0, loc)
	headers := signer.Headers("GET", "/", "", at)
	assert.Equal(t, "1748779200", headers["x-timestamp"])
}
