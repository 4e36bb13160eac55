// Package repository implements PostgreSQL persistence for access policies
// and their bindings.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
)

const policyColumns = `id, team_id, name, description, path_pattern, effect, permissions,
	is_active, created_by_user_id, created_at, updated_at`

// PostgreSQLPolicyRepository implements AccessPolicy persistence for PostgreSQL.
type PostgreSQLPolicyRepository struct {
	db *sql.DB
}

// Create inserts a new policy row.
func (p *PostgreSQLPolicyRepository) Create(
	ctx context.Context,
	policy *policyDomain.AccessPolicy,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO access_policies (` + policyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		policy.ID,
		policy.TeamID,
		policy.Name,
		policy.Description,
		policy.PathPattern,
		policy.Effect,
		pq.Array(policy.Permissions),
		policy.IsActive,
		policy.CreatedByUserID,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return policyDomain.ErrPolicyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create access policy")
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique
// constraint violation.
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "unique constraint")
}

// Update persists the mutable fields of a policy.
func (p *PostgreSQLPolicyRepository) Update(
	ctx context.Context,
	policy *policyDomain.AccessPolicy,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE access_policies
			  SET name = $1, description = $2, path_pattern = $3, effect = $4,
				  permissions = $5, is_active = $6, updated_at = $7
			  WHERE id = $8`

	_, err := querier.ExecContext(
		ctx,
		query,
		policy.Name,
		policy.Description,
		policy.PathPattern,
		policy.Effect,
		pq.Array(policy.Permissions),
		policy.IsActive,
		policy.UpdatedAt,
		policy.ID,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return policyDomain.ErrPolicyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to update access policy")
	}
	return nil
}

// GetByID retrieves a policy by its identifier.
func (p *PostgreSQLPolicyRepository) GetByID(
	ctx context.Context,
	policyID uuid.UUID,
) (*policyDomain.AccessPolicy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + policyColumns + ` FROM access_policies WHERE id = $1 LIMIT 1`

	var policy policyDomain.AccessPolicy
	var permissions pq.StringArray
	err := querier.QueryRowContext(ctx, query, policyID).Scan(
		&policy.ID,
		&policy.TeamID,
		&policy.Name,
		&policy.Description,
		&policy.PathPattern,
		&policy.Effect,
		&permissions,
		&policy.IsActive,
		&policy.CreatedByUserID,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, policyDomain.ErrPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get access policy")
	}
	policy.Permissions = permissions
	return &policy, nil
}

// List retrieves the policies of a team, optionally restricted to active ones.
func (p *PostgreSQLPolicyRepository) List(
	ctx context.Context,
	teamID uuid.UUID,
	activeOnly bool,
	offset, limit int,
) ([]*policyDomain.AccessPolicy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + policyColumns + `
			  FROM access_policies
			  WHERE team_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name ASC OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, teamID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access policies")
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// ListForTargets retrieves the active policies reachable through active
// bindings of any of the given (type, target) pairs. This is the candidate
// set for an access evaluation.
func (p *PostgreSQLPolicyRepository) ListForTargets(
	ctx context.Context,
	targets []policyDomain.BindingTarget,
) ([]*policyDomain.AccessPolicy, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	querier := database.GetTx(ctx, p.db)

	types := make([]string, len(targets))
	ids := make([]uuid.UUID, len(targets))
	for i, target := range targets {
		types[i] = string(target.Type)
		ids[i] = target.TargetID
	}

	// unnest pairs the type and target arrays positionally.
	query := `SELECT DISTINCT p.id, p.team_id, p.name, p.description, p.path_pattern,
				p.effect, p.permissions, p.is_active, p.created_by_user_id,
				p.created_at, p.updated_at
			  FROM access_policies p
			  JOIN policy_bindings b ON b.policy_id = p.id
			  JOIN unnest($1::text[], $2::uuid[]) AS t(binding_type, target_id)
				ON b.binding_type = t.binding_type AND b.target_id = t.target_id
			  WHERE p.is_active = TRUE AND b.is_active = TRUE`

	rows, err := querier.QueryContext(ctx, query, pq.Array(types), pq.Array(ids))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list candidate policies")
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// Delete removes a policy row; bindings cascade.
func (p *PostgreSQLPolicyRepository) Delete(ctx context.Context, policyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM access_policies WHERE id = $1`

	_, err := querier.ExecContext(ctx, query, policyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete access policy")
	}
	return nil
}

func scanPolicies(rows *sql.Rows) ([]*policyDomain.AccessPolicy, error) {
	var policies []*policyDomain.AccessPolicy
	for rows.Next() {
		var policy policyDomain.AccessPolicy
		var permissions pq.StringArray
		err := rows.Scan(
			&policy.ID,
			&policy.TeamID,
			&policy.Name,
			&policy.Description,
			&policy.PathPattern,
			&policy.Effect,
			&permissions,
			&policy.IsActive,
			&policy.CreatedByUserID,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan access policy")
		}
		policy.Permissions = permissions
		policies = append(policies, &policy)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate access policies")
	}
	return policies, nil
}

// NewPostgreSQLPolicyRepository creates a new PostgreSQL AccessPolicy repository instance.
func NewPostgreSQLPolicyRepository(db *sql.DB) *PostgreSQLPolicyRepository {
	return &PostgreSQLPolicyRepository{db: db}
}
