package domain

import (
	apperrors "github.com/allisson/vault/internal/errors"
)

// Rotation domain errors built on the shared sentinels.
var (
	// ErrRotationPolicyNotFound indicates no rotation policy exists for the secret.
	ErrRotationPolicyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "rotation policy not found")

	// ErrRotationPolicyAlreadyExists indicates the secret already has a rotation policy.
	ErrRotationPolicyAlreadyExists = apperrors.Wrap(apperrors.ErrConflict, "rotation policy already exists for this secret")
)
