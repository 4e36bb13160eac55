// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated subject doesn't have permission.
	ErrForbidden = errors.New("forbidden")

	// ErrSealed indicates a data-plane operation was attempted while the vault
	// is not in the unsealed state.
	ErrSealed = errors.New("vault is sealed")

	// ErrUnsealVerifyFailed indicates the key reconstructed from the submitted
	// shares did not match the configured master key.
	ErrUnsealVerifyFailed = errors.New("unseal verification failed")

	// ErrCryptoAuth indicates an AEAD authentication failure (wrong key or
	// tampered ciphertext). Operations failing with this error must not be retried.
	ErrCryptoAuth = errors.New("cryptographic authentication failed")

	// ErrMalformedEnvelope indicates a structural failure while decoding a
	// ciphertext envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrRotationFailed wraps transport or payload errors from a rotation attempt.
	ErrRotationFailed = errors.New("rotation failed")

	// ErrNotImplemented indicates a deliberately unimplemented operation.
	ErrNotImplemented = errors.New("not implemented")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
