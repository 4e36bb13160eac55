package service

import (
	"encoding/base64"
	"encoding/binary"

	apperrors "github.com/allisson/vault/internal/errors"
)

// Envelope wire format (base64 of the following byte layout, lengths big-endian):
//
//	version  : u8  (= 1)
//	keyIdLen : u32
//	keyId    : keyIdLen bytes (UTF-8)
//	dekBlockLen : u32
//	dekBlock : dekBlockLen bytes (dekIv(12) || encDek)
//	dataIv   : 12 bytes
//	ct+tag   : remaining bytes
//
// This is the only byte-exact wire format the service defines; it must
// round-trip across implementations.
const (
	// EnvelopeVersion is the only envelope layout version in existence.
	EnvelopeVersion = 1

	// Bounds for the keyId and dekBlock length prefixes. Anything outside is
	// a structural violation.
	minKeyIDLength    = 1
	maxKeyIDLength    = 1000
	minDekBlockLength = NonceSize
	maxDekBlockLength = 1000
)

// Envelope is the decoded form of a ciphertext envelope.
type Envelope struct {
	// KeyID identifies the wrapping key that encrypted the DEK.
	KeyID string
	// DekIV is the 12-byte nonce used to encrypt the DEK.
	DekIV []byte
	// EncryptedDek is the DEK wrapped with the caller's key (tag appended).
	EncryptedDek []byte
	// DataIV is the 12-byte nonce used to encrypt the payload.
	DataIV []byte
	// Ciphertext is the encrypted payload with the GCM tag appended.
	Ciphertext []byte
}

// EncodeEnvelope serialises an envelope to its base64 wire form.
func EncodeEnvelope(env *Envelope) string {
	keyID := []byte(env.KeyID)
	dekBlock := make([]byte, 0, len(env.DekIV)+len(env.EncryptedDek))
	dekBlock = append(dekBlock, env.DekIV...)
	dekBlock = append(dekBlock, env.EncryptedDek...)

	buf := make([]byte, 0, 1+4+len(keyID)+4+len(dekBlock)+len(env.DataIV)+len(env.Ciphertext))
	buf = append(buf, EnvelopeVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keyID)))
	buf = append(buf, keyID...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(dekBlock)))
	buf = append(buf, dekBlock...)
	buf = append(buf, env.DataIV...)
	buf = append(buf, env.Ciphertext...)

	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeEnvelope parses a base64 envelope string into its fields. Any
// structural violation (bad base64, unknown version, out-of-range lengths,
// truncated sections) fails with ErrMalformedEnvelope.
func DecodeEnvelope(encoded string) (*Envelope, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "invalid base64")
	}

	keyID, rest, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	if len(rest) < 4 {
		return nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "truncated dek block length")
	}
	dekBlockLen := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if dekBlockLen < minDekBlockLength || dekBlockLen > maxDekBlockLength {
		return nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "dek block length out of range")
	}
	if len(rest) < dekBlockLen {
		return nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "truncated dek block")
	}
	dekBlock := rest[:dekBlockLen]
	rest = rest[dekBlockLen:]

	if len(rest) < NonceSize+TagSize {
		return nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "truncated payload")
	}

	return &Envelope{
		KeyID:        keyID,
		DekIV:        dekBlock[:NonceSize],
		EncryptedDek: dekBlock[NonceSize:],
		DataIV:       rest[:NonceSize],
		Ciphertext:   rest[NonceSize:],
	}, nil
}

// ExtractKeyID parses only the envelope header and returns the embedded key
// id. It never touches the DEK block or the ciphertext.
func ExtractKeyID(encoded string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedEnvelope, "invalid base64")
	}

	keyID, _, err := parseHeader(buf)
	if err != nil {
		return "", err
	}
	return keyID, nil
}

// parseHeader validates the version byte and the keyId section, returning the
// key id and the unparsed remainder.
func parseHeader(buf []byte) (string, []byte, error) {
	if len(buf) < 1+4 {
		return "", nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "truncated header")
	}
	if buf[0] != EnvelopeVersion {
		return "", nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "unsupported envelope version")
	}

	keyIDLen := int(binary.BigEndian.Uint32(buf[1:5]))
	if keyIDLen < minKeyIDLength || keyIDLen > maxKeyIDLength {
		return "", nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "key id length out of range")
	}
	if len(buf) < 5+keyIDLen {
		return "", nil, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "truncated key id")
	}

	return string(buf[5 : 5+keyIDLen]), buf[5+keyIDLen:], nil
}
