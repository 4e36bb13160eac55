package usecase

import (
	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
)

// CryptoUseCase provides envelope encryption against purpose-derived keys.
//
// Every ciphertext is a base64 envelope wrapping a fresh 32-byte DEK: the DEK
// encrypts the payload with AES-256-GCM, and the DEK itself is encrypted with
// either a purpose-derived KEK or a caller-supplied 32-byte key. Two calls
// with identical inputs therefore always produce different ciphertexts.
type CryptoUseCase interface {
	// Encrypt wraps plaintext with the secret-storage KEK and the default key id.
	Encrypt(plaintext []byte) (string, error)

	// EncryptWithPurpose wraps plaintext with the KEK derived for the given
	// purpose, embedding a purpose-specific key id.
	EncryptWithPurpose(plaintext []byte, purpose cryptoDomain.Purpose) (string, error)

	// EncryptWithKey wraps plaintext with the supplied 32-byte key and embeds
	// the given key id in the envelope header.
	EncryptWithKey(plaintext []byte, keyID string, key []byte) (string, error)

	// Decrypt unwraps an envelope produced by Encrypt.
	Decrypt(envelope string) ([]byte, error)

	// DecryptWithPurpose unwraps an envelope produced by EncryptWithPurpose.
	DecryptWithPurpose(envelope string, purpose cryptoDomain.Purpose) ([]byte, error)

	// DecryptWithKey unwraps an envelope with the supplied 32-byte key. Fails
	// with ErrCryptoAuth on a GCM tag mismatch and ErrMalformedEnvelope on any
	// structural violation.
	DecryptWithKey(envelope string, key []byte) ([]byte, error)

	// Rewrap decrypts an envelope with oldKey and re-encrypts it under newKey
	// with newKeyID. The plaintext never leaves the local stack.
	Rewrap(envelope string, oldKey, newKey []byte, newKeyID string) (string, error)

	// ExtractKeyID parses the envelope header only and returns the embedded
	// key id without touching the DEK or ciphertext.
	ExtractKeyID(envelope string) (string, error)

	// GenerateDataKey returns 32 bytes from a cryptographic RNG.
	GenerateDataKey() ([]byte, error)

	// GenerateAndWrapDataKey returns a fresh data key as base64 plaintext
	// together with an envelope of that key under the secret-storage KEK.
	GenerateAndWrapDataKey() (plaintextBase64 string, wrapped string, err error)

	// GenerateRandomString draws length characters uniformly from the named
	// or literal charset using a cryptographic RNG.
	GenerateRandomString(length int, charset string) (string, error)

	// Hash returns the hex-encoded SHA-256 digest of the input.
	Hash(s string) string
}
