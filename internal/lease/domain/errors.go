package domain

import (
	apperrors "github.com/allisson/vault/internal/errors"
)

// Lease domain errors built on the shared sentinels.
var (
	// ErrLeaseNotFound indicates the requested lease does not exist.
	ErrLeaseNotFound = apperrors.Wrap(apperrors.ErrNotFound, "lease not found")

	// ErrLeaseNotActive indicates a revoke was attempted on a non-ACTIVE lease.
	ErrLeaseNotActive = apperrors.Wrap(apperrors.ErrInvalidInput, "lease is not active")

	// ErrNotDynamicSecret indicates the source secret cannot issue leases.
	ErrNotDynamicSecret = apperrors.Wrap(apperrors.ErrInvalidInput, "secret is not a dynamic secret")

	// ErrUnsupportedBackend indicates a backend type outside postgresql/mysql.
	ErrUnsupportedBackend = apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported backend type")
)
