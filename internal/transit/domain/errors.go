package domain

import (
	"github.com/allisson/vault/internal/errors"
)

// Transit-specific error definitions.
var (
	// ErrTransitKeyNotFound indicates no transit key exists with the given name or id.
	ErrTransitKeyNotFound = errors.Wrap(errors.ErrNotFound, "transit key not found")

	// ErrTransitKeyAlreadyExists indicates the (team, name) pair is taken.
	ErrTransitKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "transit key already exists")

	// ErrVersionBelowMin indicates a decryption attempt with a version below
	// the key's minDecryptionVersion.
	ErrVersionBelowMin = errors.Wrap(errors.ErrInvalidInput, "key version below minimum decryption version")

	// ErrKeyVersionMissing indicates the envelope references a version that is
	// not present in the key-material list.
	ErrKeyVersionMissing = errors.Wrap(errors.ErrNotFound, "key version not found")

	// ErrKeyNotDeletable indicates a delete on a key with isDeletable = false.
	ErrKeyNotDeletable = errors.Wrap(errors.ErrForbidden, "transit key is not deletable")
)
