// Package domain defines the core domain models for the cryptographic module:
// the process-wide master key and the purpose strings used to derive
// key-encryption keys from it.
package domain

import (
	"encoding/base64"
	"fmt"
)

// MinMasterKeyLength is the minimum accepted master key size in bytes.
// The service must refuse to start with anything shorter.
const MinMasterKeyLength = 32

// MasterKey is the process-wide root secret of the envelope encryption
// hierarchy. All key-encryption keys are derived from it on demand with HKDF;
// the raw bytes never leave this process and must never be logged.
type MasterKey struct {
	key []byte
}

// NewMasterKey wraps raw key material after validating its length.
func NewMasterKey(key []byte) (*MasterKey, error) {
	if len(key) < MinMasterKeyLength {
		return nil, fmt.Errorf(
			"%w: master key must be at least %d bytes, got %d",
			ErrInvalidMasterKey,
			MinMasterKeyLength,
			len(key),
		)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &MasterKey{key: k}, nil
}

// NewMasterKeyFromBase64 decodes a base64 master key and validates its length.
func NewMasterKeyFromBase64(encoded string) (*MasterKey, error) {
	if encoded == "" {
		return nil, ErrMasterKeyNotSet
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKey, err)
	}
	defer Zero(key)
	return NewMasterKey(key)
}

// Bytes returns the raw master key material. Callers must not retain or
// mutate the returned slice beyond the current operation.
func (m *MasterKey) Bytes() []byte {
	return m.key
}

// Close zeroes the master key material. The key is unusable afterwards.
func (m *MasterKey) Close() {
	Zero(m.key)
	m.key = nil
}
