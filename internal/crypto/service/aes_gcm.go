package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	apperrors "github.com/allisson/vault/internal/errors"
)

// NonceSize is the AES-GCM nonce length in bytes used throughout the envelope
// format (96 bits, randomly generated per encryption).
const NonceSize = 12

// TagSize is the AES-GCM authentication tag length appended to ciphertexts.
const TagSize = 16

// AESGCMCipher wraps an AES-256-GCM AEAD instance.
//
// The cipher is stateless and safe for concurrent use from multiple
// goroutines; each encryption generates a fresh random nonce.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != 32 {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt encrypts plaintext with a freshly generated 12-byte nonce and
// returns the ciphertext (16-byte tag appended) alongside the nonce.
func (a *AESGCMCipher) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt authenticates and decrypts ciphertext produced by Encrypt. A tag
// mismatch (wrong key or tampered data) surfaces as ErrCryptoAuth.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperrors.ErrCryptoAuth
	}
	return plaintext, nil
}
