package domain

import (
	"github.com/allisson/vault/internal/errors"
)

// Secret-specific error definitions.
var (
	// ErrSecretNotFound indicates no secret exists at the requested path or id.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrSecretAlreadyExists indicates the (team, path) pair is taken.
	ErrSecretAlreadyExists = errors.Wrap(errors.ErrConflict, "secret already exists at path")

	// ErrVersionNotFound indicates the requested version row does not exist.
	ErrVersionNotFound = errors.Wrap(errors.ErrNotFound, "secret version not found")

	// ErrVersionDestroyed indicates a read of a destroyed version.
	ErrVersionDestroyed = errors.Wrap(errors.ErrInvalidInput, "secret version has been destroyed")

	// ErrValueOnReference indicates a value operation on a REFERENCE secret.
	ErrValueOnReference = errors.Wrap(errors.ErrInvalidInput, "reference secrets store no value")
)
