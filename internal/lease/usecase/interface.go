// Package usecase implements the dynamic database lease lifecycle.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leaseDomain "github.com/allisson/vault/internal/lease/domain"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// LeaseRepository defines the interface for DynamicLease persistence operations.
type LeaseRepository interface {
	Create(ctx context.Context, lease *leaseDomain.DynamicLease) error
	Update(ctx context.Context, lease *leaseDomain.DynamicLease) error
	GetByID(ctx context.Context, leaseID string) (*leaseDomain.DynamicLease, error)
	ListBySecret(ctx context.Context, secretID uuid.UUID, offset, limit int) ([]*leaseDomain.DynamicLease, error)
	ListActiveBySecret(ctx context.Context, secretID uuid.UUID) ([]*leaseDomain.DynamicLease, error)
	// ListExpired returns ACTIVE leases with expires_at before now.
	ListExpired(ctx context.Context, now time.Time) ([]*leaseDomain.DynamicLease, error)
}

// SecretSource is the slice of the secrets use case that leasing needs.
type SecretSource interface {
	Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error)
	GetByPath(ctx context.Context, teamID uuid.UUID, path string) (*secretsDomain.Secret, error)
	GetMetadata(ctx context.Context, secretID uuid.UUID) (map[string]string, error)
}

// LeaseUseCase defines the interface for dynamic lease management.
type LeaseUseCase interface {
	// CreateLease issues short-lived credentials from a DYNAMIC secret. The
	// returned plaintext credentials are visible exactly once; later reads of
	// the lease expose metadata only.
	CreateLease(ctx context.Context, input leaseDomain.CreateLeaseInput) (*leaseDomain.CreateLeaseResult, error)

	// GetLease retrieves lease metadata; credentials stay sealed.
	GetLease(ctx context.Context, leaseID string) (*leaseDomain.DynamicLease, error)

	// ListLeases retrieves leases of a secret, newest first.
	ListLeases(ctx context.Context, secretID uuid.UUID, offset, limit int) ([]*leaseDomain.DynamicLease, error)

	// RevokeLease flips an ACTIVE lease to REVOKED and best-effort drops the
	// backend user. Non-ACTIVE leases are rejected.
	RevokeLease(ctx context.Context, leaseID string, revokedBy uuid.UUID) (*leaseDomain.DynamicLease, error)

	// RevokeAllLeases revokes every ACTIVE lease of a secret and reports how
	// many were revoked; a second call returns zero.
	RevokeAllLeases(ctx context.Context, secretID uuid.UUID, revokedBy uuid.UUID) (int, error)

	// ExpireLeases flips every overdue ACTIVE lease to EXPIRED, dropping
	// backend users best-effort, and reports how many expired.
	ExpireLeases(ctx context.Context) (int, error)

	// Start runs the expiry sweep until the context is cancelled. Sweeps never
	// overlap: a run that outlasts the interval delays the next one.
	Start(ctx context.Context) error
}
