// Package service implements the cryptographic primitives for envelope
// encryption: HKDF key derivation, AES-256-GCM, the ciphertext envelope codec,
// and random material generation.
package service

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
)

// hkdfMaxLength is the RFC 5869 output ceiling for SHA-256: 255 blocks of 32 bytes.
const hkdfMaxLength = 255 * sha256.Size

// HKDFExtract performs the RFC 5869 extract step with SHA-256.
// A nil or empty salt is replaced by a hash-length block of zeros, per the RFC.
func HKDFExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// HKDFExpand performs the RFC 5869 expand step with SHA-256, producing length
// bytes of output keying material from the pseudorandom key.
func HKDFExpand(prk, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("hkdf: output length must be positive, got %d", length)
	}
	if length > hkdfMaxLength {
		return nil, fmt.Errorf("hkdf: output length %d exceeds maximum %d", length, hkdfMaxLength)
	}

	okm := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), okm); err != nil {
		return nil, fmt.Errorf("hkdf: expand failed: %w", err)
	}
	return okm, nil
}

// HKDF derives length bytes from the input keying material in one
// extract-then-expand pass.
func HKDF(ikm, salt, info []byte, length int) ([]byte, error) {
	return HKDFExpand(HKDFExtract(salt, ikm), info, length)
}

// DeriveKek derives the 32-byte key-encryption key for the given purpose from
// the master key. Derivation is deterministic and cache-free: callers derive
// on demand and discard the result after use.
func DeriveKek(masterKey *cryptoDomain.MasterKey, purpose cryptoDomain.Purpose) ([]byte, error) {
	info := append([]byte(cryptoDomain.KekInfoPrefix), []byte(purpose)...)
	return HKDF(masterKey.Bytes(), nil, info, 32)
}
