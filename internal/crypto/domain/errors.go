package domain

import (
	"github.com/allisson/vault/internal/errors"
)

// Crypto-specific error definitions.
var (
	// ErrMasterKeyNotSet indicates no master key material was configured.
	ErrMasterKeyNotSet = errors.Wrap(errors.ErrInvalidInput, "master key not set")

	// ErrInvalidMasterKey indicates the configured master key is malformed or too short.
	ErrInvalidMasterKey = errors.Wrap(errors.ErrInvalidInput, "invalid master key")

	// ErrInvalidKeySize indicates a wrapping key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "key must be exactly 32 bytes")

	// ErrSelfTestFailed indicates the startup encrypt/decrypt round trip did not
	// return the original plaintext. This is a fatal startup error.
	ErrSelfTestFailed = errors.New("crypto self-test failed")
)
