package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/vault/internal/errors"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyService "github.com/allisson/vault/internal/policy/service"
)

// policyUseCase implements the PolicyUseCase interface.
type policyUseCase struct {
	policyRepo  PolicyRepository
	bindingRepo BindingRepository
}

// CreatePolicy stores a new active policy.
func (p *policyUseCase) CreatePolicy(
	ctx context.Context,
	input policyDomain.CreatePolicyInput,
) (*policyDomain.AccessPolicy, error) {
	if input.Name == "" || input.PathPattern == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "name and pathPattern are required")
	}
	if input.Effect != policyDomain.EffectAllow && input.Effect != policyDomain.EffectDeny {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "effect must be ALLOW or DENY")
	}
	if len(input.Permissions) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "at least one permission is required")
	}

	now := time.Now().UTC()
	policy := &policyDomain.AccessPolicy{
		ID:              uuid.Must(uuid.NewV7()),
		TeamID:          input.TeamID,
		Name:            input.Name,
		Description:     input.Description,
		PathPattern:     input.PathPattern,
		Effect:          input.Effect,
		Permissions:     input.Permissions,
		IsActive:        true,
		CreatedByUserID: input.CreatedByUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := p.policyRepo.Create(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// GetPolicy retrieves a policy by id.
func (p *policyUseCase) GetPolicy(
	ctx context.Context,
	policyID uuid.UUID,
) (*policyDomain.AccessPolicy, error) {
	return p.policyRepo.GetByID(ctx, policyID)
}

// UpdatePolicy applies a partial update to a policy.
func (p *policyUseCase) UpdatePolicy(
	ctx context.Context,
	policyID uuid.UUID,
	input policyDomain.UpdatePolicyInput,
) (*policyDomain.AccessPolicy, error) {
	policy, err := p.policyRepo.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		policy.Name = *input.Name
	}
	if input.Description != nil {
		policy.Description = input.Description
	}
	if input.PathPattern != nil {
		policy.PathPattern = *input.PathPattern
	}
	if input.Effect != nil {
		if *input.Effect != policyDomain.EffectAllow && *input.Effect != policyDomain.EffectDeny {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "effect must be ALLOW or DENY")
		}
		policy.Effect = *input.Effect
	}
	if input.Permissions != nil {
		policy.Permissions = input.Permissions
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}
	policy.UpdatedAt = time.Now().UTC()

	if err := p.policyRepo.Update(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// DeletePolicy removes a policy; its bindings cascade at the database level.
func (p *policyUseCase) DeletePolicy(ctx context.Context, policyID uuid.UUID) error {
	if _, err := p.policyRepo.GetByID(ctx, policyID); err != nil {
		return err
	}
	return p.policyRepo.Delete(ctx, policyID)
}

// ListPolicies retrieves policies of a team.
func (p *policyUseCase) ListPolicies(
	ctx context.Context,
	teamID uuid.UUID,
	activeOnly bool,
	offset, limit int,
) ([]*policyDomain.AccessPolicy, error) {
	return p.policyRepo.List(ctx, teamID, activeOnly, offset, limit)
}

// CreateBinding attaches a policy to a subject.
func (p *policyUseCase) CreateBinding(
	ctx context.Context,
	policyID uuid.UUID,
	bindingType policyDomain.BindingType,
	targetID uuid.UUID,
) (*policyDomain.PolicyBinding, error) {
	switch bindingType {
	case policyDomain.BindingTypeUser, policyDomain.BindingTypeTeam, policyDomain.BindingTypeService:
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown binding type")
	}

	if _, err := p.policyRepo.GetByID(ctx, policyID); err != nil {
		return nil, err
	}

	existing, err := p.bindingRepo.Get(ctx, policyID, bindingType, targetID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, policyDomain.ErrBindingAlreadyExists
	}

	binding := &policyDomain.PolicyBinding{
		ID:          uuid.Must(uuid.NewV7()),
		PolicyID:    policyID,
		BindingType: bindingType,
		TargetID:    targetID,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.bindingRepo.Create(ctx, binding); err != nil {
		return nil, err
	}
	return binding, nil
}

// DeleteBinding detaches a binding.
func (p *policyUseCase) DeleteBinding(ctx context.Context, bindingID uuid.UUID) error {
	return p.bindingRepo.Delete(ctx, bindingID)
}

// ListBindingsByPolicy retrieves all bindings of a policy.
func (p *policyUseCase) ListBindingsByPolicy(
	ctx context.Context,
	policyID uuid.UUID,
) ([]*policyDomain.PolicyBinding, error) {
	return p.bindingRepo.ListByPolicy(ctx, policyID)
}

// ListBindingsByTarget retrieves all bindings of a (type, target) pair.
func (p *policyUseCase) ListBindingsByTarget(
	ctx context.Context,
	bindingType policyDomain.BindingType,
	targetID uuid.UUID,
) ([]*policyDomain.PolicyBinding, error) {
	return p.bindingRepo.ListByTarget(ctx, bindingType, targetID)
}

// Evaluate computes the access decision for a subject on a path and
// permission. The candidate set is every active policy reachable through an
// active binding of the subject or its team; any matching deny overrides any
// allow, and nothing matching means a default deny.
func (p *policyUseCase) Evaluate(
	ctx context.Context,
	subject policyDomain.Subject,
	path, permission string,
) (*policyDomain.Decision, error) {
	candidates, err := p.policyRepo.ListForTargets(ctx, subject.Targets())
	if err != nil {
		return nil, err
	}

	var matching []*policyDomain.AccessPolicy
	for _, policy := range candidates {
		if policyService.MatchPath(policy.PathPattern, path) {
			matching = append(matching, policy)
		}
	}

	// Deny pass first: deny overrides allow regardless of ordering.
	for _, policy := range matching {
		if policy.Effect == policyDomain.EffectDeny && policy.HasPermission(permission) {
			return &policyDomain.Decision{
				Allowed:    false,
				Reason:     fmt.Sprintf("denied by policy %q", policy.Name),
				PolicyID:   &policy.ID,
				PolicyName: &policy.Name,
			}, nil
		}
	}

	for _, policy := range matching {
		if policy.Effect == policyDomain.EffectAllow && policy.HasPermission(permission) {
			return &policyDomain.Decision{
				Allowed:    true,
				Reason:     fmt.Sprintf("allowed by policy %q", policy.Name),
				PolicyID:   &policy.ID,
				PolicyName: &policy.Name,
			}, nil
		}
	}

	return &policyDomain.Decision{
		Allowed: false,
		Reason:  "no policy grants this permission",
	}, nil
}

// NewPolicyUseCase creates a new policy use case instance with the provided dependencies.
func NewPolicyUseCase(
	policyRepo PolicyRepository,
	bindingRepo BindingRepository,
) PolicyUseCase {
	return &policyUseCase{
		policyRepo:  policyRepo,
		bindingRepo: bindingRepo,
	}
}
