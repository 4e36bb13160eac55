// Package usecase implements scheduled and on-demand secret rotation.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// RotationPolicyRepository defines the interface for RotationPolicy persistence operations.
type RotationPolicyRepository interface {
	Create(ctx context.Context, policy *rotationDomain.RotationPolicy) error
	Update(ctx context.Context, policy *rotationDomain.RotationPolicy) error
	GetByID(ctx context.Context, policyID uuid.UUID) (*rotationDomain.RotationPolicy, error)
	GetBySecretID(ctx context.Context, secretID uuid.UUID) (*rotationDomain.RotationPolicy, error)
	// ListDue returns active policies with next_rotation_at before now.
	ListDue(ctx context.Context, now time.Time) ([]*rotationDomain.RotationPolicy, error)
	Delete(ctx context.Context, policyID uuid.UUID) error
}

// RotationHistoryRepository defines the interface for RotationHistory persistence operations.
type RotationHistoryRepository interface {
	Create(ctx context.Context, history *rotationDomain.RotationHistory) error
	ListBySecret(ctx context.Context, secretID uuid.UUID, offset, limit int) ([]*rotationDomain.RotationHistory, error)
}

// SecretManager is the slice of the secrets use case that rotation needs.
type SecretManager interface {
	Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error)
	Update(ctx context.Context, teamID uuid.UUID, path string, input secretsDomain.UpdateSecretInput) (*secretsDomain.Secret, error)
	MarkRotated(ctx context.Context, secretID uuid.UUID) error
}

// RotationUseCase defines the interface for rotation policies and execution.
type RotationUseCase interface {
	// CreatePolicy attaches a rotation policy to a secret; one policy per secret.
	CreatePolicy(ctx context.Context, input rotationDomain.CreateRotationPolicyInput) (*rotationDomain.RotationPolicy, error)

	// GetPolicyBySecret retrieves the rotation policy of a secret.
	GetPolicyBySecret(ctx context.Context, secretID uuid.UUID) (*rotationDomain.RotationPolicy, error)

	// UpdatePolicy applies a partial update; only provided fields change.
	UpdatePolicy(ctx context.Context, policyID uuid.UUID, input rotationDomain.UpdateRotationPolicyInput) (*rotationDomain.RotationPolicy, error)

	// DeletePolicy removes a rotation policy.
	DeletePolicy(ctx context.Context, policyID uuid.UUID) error

	// RotateSecret rotates one secret now and records the attempt. A nil
	// triggeredBy marks a scheduled run. The history row is returned together
	// with the rotation error, if any.
	RotateSecret(ctx context.Context, secretID uuid.UUID, triggeredBy *uuid.UUID) (*rotationDomain.RotationHistory, error)

	// RotateDue rotates every active policy whose next rotation time has
	// passed. A failure on one policy never stops the others.
	RotateDue(ctx context.Context) error

	// ListHistory retrieves rotation attempts of a secret, newest first.
	ListHistory(ctx context.Context, secretID uuid.UUID, offset, limit int) ([]*rotationDomain.RotationHistory, error)

	// Start runs the due-rotation scheduler until the context is cancelled.
	// Ticks never overlap: a run that outlasts the interval delays the next one.
	Start(ctx context.Context) error
}
