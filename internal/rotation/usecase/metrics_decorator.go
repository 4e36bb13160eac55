package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/metrics"
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record emits the operation counter and duration histogram for one call.
func (r *rotationUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", operation, status)
	r.metrics.RecordDuration(ctx, "rotation", operation, time.Since(start), status)
}

func (r *rotationUseCaseWithMetrics) CreatePolicy(
	ctx context.Context,
	input rotationDomain.CreateRotationPolicyInput,
) (*rotationDomain.RotationPolicy, error) {
	start := time.Now()
	policy, err := r.next.CreatePolicy(ctx, input)
	r.record(ctx, "rotation_policy_create", start, err)
	return policy, err
}

func (r *rotationUseCaseWithMetrics) GetPolicyBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) (*rotationDomain.RotationPolicy, error) {
	start := time.Now()
	policy, err := r.next.GetPolicyBySecret(ctx, secretID)
	r.record(ctx, "rotation_policy_get", start, err)
	return policy, err
}

func (r *rotationUseCaseWithMetrics) UpdatePolicy(
	ctx context.Context,
	policyID uuid.UUID,
	input rotationDomain.UpdateRotationPolicyInput,
) (*rotationDomain.RotationPolicy, error) {
	start := time.Now()
	policy, err := r.next.UpdatePolicy(ctx, policyID, input)
	r.record(ctx, "rotation_policy_update", start, err)
	return policy, err
}

func (r *rotationUseCaseWithMetrics) DeletePolicy(ctx context.Context, policyID uuid.UUID) error {
	start := time.Now()
	err := r.next.DeletePolicy(ctx, policyID)
	r.record(ctx, "rotation_policy_delete", start, err)
	return err
}

func (r *rotationUseCaseWithMetrics) RotateSecret(
	ctx context.Context,
	secretID uuid.UUID,
	triggeredBy *uuid.UUID,
) (*rotationDomain.RotationHistory, error) {
	start := time.Now()
	history, err := r.next.RotateSecret(ctx, secretID, triggeredBy)
	r.record(ctx, "rotation_rotate", start, err)
	return history, err
}

func (r *rotationUseCaseWithMetrics) RotateDue(ctx context.Context) error {
	start := time.Now()
	err := r.next.RotateDue(ctx)
	r.record(ctx, "rotation_rotate_due", start, err)
	return err
}

func (r *rotationUseCaseWithMetrics) ListHistory(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*rotationDomain.RotationHistory, error) {
	start := time.Now()
	entries, err := r.next.ListHistory(ctx, secretID, offset, limit)
	r.record(ctx, "rotation_list_history", start, err)
	return entries, err
}

func (r *rotationUseCaseWithMetrics) Start(ctx context.Context) error {
	return r.next.Start(ctx)
}
