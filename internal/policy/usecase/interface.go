// Package usecase implements policy management and access evaluation.
package usecase

import (
	"context"

	"github.com/google/uuid"

	policyDomain "github.com/allisson/vault/internal/policy/domain"
)

// PolicyRepository defines the interface for AccessPolicy persistence operations.
type PolicyRepository interface {
	Create(ctx context.Context, policy *policyDomain.AccessPolicy) error
	Update(ctx context.Context, policy *policyDomain.AccessPolicy) error
	GetByID(ctx context.Context, policyID uuid.UUID) (*policyDomain.AccessPolicy, error)
	List(ctx context.Context, teamID uuid.UUID, activeOnly bool, offset, limit int) ([]*policyDomain.AccessPolicy, error)
	// ListForTargets returns the active policies bound (through active
	// bindings) to any of the targets: the evaluation candidate set.
	ListForTargets(ctx context.Context, targets []policyDomain.BindingTarget) ([]*policyDomain.AccessPolicy, error)
	Delete(ctx context.Context, policyID uuid.UUID) error
}

// BindingRepository defines the interface for PolicyBinding persistence operations.
type BindingRepository interface {
	Create(ctx context.Context, binding *policyDomain.PolicyBinding) error
	Get(ctx context.Context, policyID uuid.UUID, bindingType policyDomain.BindingType, targetID uuid.UUID) (*policyDomain.PolicyBinding, error)
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]*policyDomain.PolicyBinding, error)
	ListByTarget(ctx context.Context, bindingType policyDomain.BindingType, targetID uuid.UUID) ([]*policyDomain.PolicyBinding, error)
	Delete(ctx context.Context, bindingID uuid.UUID) error
}

// PolicyUseCase defines the interface for policy management and evaluation.
type PolicyUseCase interface {
	// CreatePolicy stores a new active policy.
	CreatePolicy(ctx context.Context, input policyDomain.CreatePolicyInput) (*policyDomain.AccessPolicy, error)

	// GetPolicy retrieves a policy by id.
	GetPolicy(ctx context.Context, policyID uuid.UUID) (*policyDomain.AccessPolicy, error)

	// UpdatePolicy applies a partial update; only provided fields change.
	UpdatePolicy(ctx context.Context, policyID uuid.UUID, input policyDomain.UpdatePolicyInput) (*policyDomain.AccessPolicy, error)

	// DeletePolicy removes a policy and its bindings.
	DeletePolicy(ctx context.Context, policyID uuid.UUID) error

	// ListPolicies retrieves policies of a team.
	ListPolicies(ctx context.Context, teamID uuid.UUID, activeOnly bool, offset, limit int) ([]*policyDomain.AccessPolicy, error)

	// CreateBinding attaches a policy to a subject; duplicates are rejected.
	CreateBinding(ctx context.Context, policyID uuid.UUID, bindingType policyDomain.BindingType, targetID uuid.UUID) (*policyDomain.PolicyBinding, error)

	// DeleteBinding detaches a binding.
	DeleteBinding(ctx context.Context, bindingID uuid.UUID) error

	// ListBindingsByPolicy retrieves all bindings of a policy.
	ListBindingsByPolicy(ctx context.Context, policyID uuid.UUID) ([]*policyDomain.PolicyBinding, error)

	// ListBindingsByTarget retrieves all bindings of a (type, target) pair.
	ListBindingsByTarget(ctx context.Context, bindingType policyDomain.BindingType, targetID uuid.UUID) ([]*policyDomain.PolicyBinding, error)

	// Evaluate computes the access decision for a subject on a path and
	// permission: any matching deny wins, then any matching allow, then a
	// default deny.
	Evaluate(ctx context.Context, subject policyDomain.Subject, path, permission string) (*policyDomain.Decision, error)
}
