package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/app"
	"github.com/allisson/vault/internal/config"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
)

// CreatePolicyOptions carries the flags of the create-policy command.
type CreatePolicyOptions struct {
	TeamID      string
	Name        string
	PathPattern string
	Effect      string
	Permissions []string
	BindUserID  string
}

// RunCreatePolicy creates an access policy, optionally bound to a user.
// Intended for bootstrapping: a fresh installation has no policies, and the
// default decision is deny.
func RunCreatePolicy(ctx context.Context, opts CreatePolicyOptions) error {
	teamID, err := uuid.Parse(opts.TeamID)
	if err != nil {
		return fmt.Errorf("invalid team id %q: %w", opts.TeamID, err)
	}

	effect := policyDomain.Effect(opts.Effect)
	if effect != policyDomain.EffectAllow && effect != policyDomain.EffectDeny {
		return fmt.Errorf("effect must be ALLOW or DENY, got %q", opts.Effect)
	}
	if len(opts.Permissions) == 0 {
		return fmt.Errorf("at least one permission is required")
	}

	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	policyUseCase, err := container.PolicyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize policy use case: %w", err)
	}

	policy, err := policyUseCase.CreatePolicy(ctx, policyDomain.CreatePolicyInput{
		TeamID:      teamID,
		Name:        opts.Name,
		PathPattern: opts.PathPattern,
		Effect:      effect,
		Permissions: opts.Permissions,
	})
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	logger.Info("policy created",
		slog.String("policy_id", policy.ID.String()),
		slog.String("name", policy.Name),
		slog.String("path_pattern", policy.PathPattern),
		slog.String("effect", string(policy.Effect)),
	)

	if opts.BindUserID == "" {
		return nil
	}

	userID, err := uuid.Parse(opts.BindUserID)
	if err != nil {
		return fmt.Errorf("invalid bind-user id %q: %w", opts.BindUserID, err)
	}

	binding, err := policyUseCase.CreateBinding(ctx, policy.ID, policyDomain.BindingTypeUser, userID)
	if err != nil {
		return fmt.Errorf("failed to bind policy to user: %w", err)
	}

	logger.Info("policy bound",
		slog.String("binding_id", binding.ID.String()),
		slog.String("user_id", userID.String()),
	)
	return nil
}
