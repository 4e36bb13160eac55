package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leaseDomain "github.com/allisson/vault/internal/lease/domain"
	"github.com/allisson/vault/internal/metrics"
)

// leaseUseCaseWithMetrics decorates LeaseUseCase with metrics instrumentation.
type leaseUseCaseWithMetrics struct {
	next    LeaseUseCase
	metrics metrics.BusinessMetrics
}

// NewLeaseUseCaseWithMetrics wraps a LeaseUseCase with metrics recording.
func NewLeaseUseCaseWithMetrics(useCase LeaseUseCase, m metrics.BusinessMetrics) LeaseUseCase {
	return &leaseUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record emits the operation counter and duration histogram for one call.
func (l *leaseUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "lease", operation, status)
	l.metrics.RecordDuration(ctx, "lease", operation, time.Since(start), status)
}

func (l *leaseUseCaseWithMetrics) CreateLease(
	ctx context.Context,
	input leaseDomain.CreateLeaseInput,
) (*leaseDomain.CreateLeaseResult, error) {
	start := time.Now()
	result, err := l.next.CreateLease(ctx, input)
	l.record(ctx, "lease_create", start, err)
	return result, err
}

func (l *leaseUseCaseWithMetrics) GetLease(
	ctx context.Context,
	leaseID string,
) (*leaseDomain.DynamicLease, error) {
	start := time.Now()
	lease, err := l.next.GetLease(ctx, leaseID)
	l.record(ctx, "lease_get", start, err)
	return lease, err
}

func (l *leaseUseCaseWithMetrics) ListLeases(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*leaseDomain.DynamicLease, error) {
	start := time.Now()
	leases, err := l.next.ListLeases(ctx, secretID, offset, limit)
	l.record(ctx, "lease_list", start, err)
	return leases, err
}

func (l *leaseUseCaseWithMetrics) RevokeLease(
	ctx context.Context,
	leaseID string,
	revokedBy uuid.UUID,
) (*leaseDomain.DynamicLease, error) {
	start := time.Now()
	lease, err := l.next.RevokeLease(ctx, leaseID, revokedBy)
	l.record(ctx, "lease_revoke", start, err)
	return lease, err
}

func (l *leaseUseCaseWithMetrics) RevokeAllLeases(
	ctx context.Context,
	secretID uuid.UUID,
	revokedBy uuid.UUID,
) (int, error) {
	start := time.Now()
	revoked, err := l.next.RevokeAllLeases(ctx, secretID, revokedBy)
	l.record(ctx, "lease_revoke_all", start, err)
	return revoked, err
}

func (l *leaseUseCaseWithMetrics) ExpireLeases(ctx context.Context) (int, error) {
	start := time.Now()
	expired, err := l.next.ExpireLeases(ctx)
	l.record(ctx, "lease_expire", start, err)
	return expired, err
}

func (l *leaseUseCaseWithMetrics) Start(ctx context.Context) error {
	return l.next.Start(ctx)
}
