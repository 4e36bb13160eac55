package service

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/vault/internal/errors"
)

func sampleEnvelope() *Envelope {
	return &Envelope{
		KeyID:        "vault-master-v1",
		DekIV:        make([]byte, NonceSize),
		EncryptedDek: make([]byte, 48),
		DataIV:       make([]byte, NonceSize),
		Ciphertext:   make([]byte, 32),
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := sampleEnvelope()
	env.Ciphertext = []byte("ciphertext-with-tag-bytes-here!!")

	decoded, err := DecodeEnvelope(EncodeEnvelope(env))
	require.NoError(t, err)

	assert.Equal(t, env.KeyID, decoded.KeyID)
	assert.Equal(t, env.DekIV, decoded.DekIV)
	assert.Equal(t, env.EncryptedDek, decoded.EncryptedDek)
	assert.Equal(t, env.DataIV, decoded.DataIV)
	assert.Equal(t, env.Ciphertext, decoded.Ciphertext)
}

func TestExtractKeyID(t *testing.T) {
	env := sampleEnvelope()
	env.KeyID = "payments:v3"

	keyID, err := ExtractKeyID(EncodeEnvelope(env))
	require.NoError(t, err)
	assert.Equal(t, "payments:v3", keyID)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	t.Run("InvalidBase64", func(t *testing.T) {
		_, err := DecodeEnvelope("not-base64!!!")
		assert.ErrorIs(t, err, apperrors.ErrMalformedEnvelope)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := DecodeEnvelope("")
		assert.ErrorIs(t, err, apperrors.ErrMalformedEnvelope)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(EncodeEnvelope(sampleEnvelope()))
		require.NoError(t, err)
		raw[0] = 2

		_, decodeErr := DecodeEnvelope(base64.StdEncoding.EncodeToString(raw))
		assert.ErrorIs(t, decodeErr, apperrors.ErrMalformedEnvelope)
	})

	t.Run("KeyIDLengthOutOfRange", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(EncodeEnvelope(sampleEnvelope()))
		require.NoError(t, err)
		binary.BigEndian.PutUint32(raw[1:5], 100000)

		_, decodeErr := DecodeEnvelope(base64.StdEncoding.EncodeToString(raw))
		assert.ErrorIs(t, decodeErr, apperrors.ErrMalformedEnvelope)
	})

	t.Run("ZeroKeyIDLength", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(EncodeEnvelope(sampleEnvelope()))
		require.NoError(t, err)
		binary.BigEndian.PutUint32(raw[1:5], 0)

		_, decodeErr := DecodeEnvelope(base64.StdEncoding.EncodeToString(raw))
		assert.ErrorIs(t, decodeErr, apperrors.ErrMalformedEnvelope)
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(EncodeEnvelope(sampleEnvelope()))
		require.NoError(t, err)
		truncated := raw[:len(raw)-40]

		_, decodeErr := DecodeEnvelope(base64.StdEncoding.EncodeToString(truncated))
		assert.ErrorIs(t, decodeErr, apperrors.ErrMalformedEnvelope)
	})

	t.Run("DekBlockTooShort", func(t *testing.T) {
		env := sampleEnvelope()
		env.DekIV = make([]byte, 4)
		env.EncryptedDek = nil

		_, decodeErr := DecodeEnvelope(EncodeEnvelope(env))
		assert.ErrorIs(t, decodeErr, apperrors.ErrMalformedEnvelope)
	})
}

func TestExtractKeyID_IgnoresBody(t *testing.T) {
	// A corrupted body must not prevent header parsing.
	env := sampleEnvelope()
	raw, err := base64.StdEncoding.DecodeString(EncodeEnvelope(env))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF

	keyID, err := ExtractKeyID(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, env.KeyID, keyID)
}
