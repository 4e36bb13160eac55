package domain

import (
	"github.com/allisson/vault/internal/errors"
)

// Seal-specific error definitions.
var (
	// ErrAlreadySealed indicates seal() was called while already sealed.
	ErrAlreadySealed = errors.Wrap(errors.ErrConflict, "vault is already sealed")

	// ErrAlreadyUnsealed indicates a key share was submitted while unsealed.
	ErrAlreadyUnsealed = errors.Wrap(errors.ErrConflict, "vault is already unsealed")

	// ErrInvalidKeyShare indicates a share that could not be decoded or whose
	// index is out of range or duplicated.
	ErrInvalidKeyShare = errors.Wrap(errors.ErrInvalidInput, "invalid key share")

	// ErrInvalidShareParams indicates an unreachable N/M combination.
	ErrInvalidShareParams = errors.Wrap(errors.ErrInvalidInput, "invalid share parameters")
)
