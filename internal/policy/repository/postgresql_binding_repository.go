package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
)

const bindingColumns = `id, policy_id, binding_type, target_id, is_active, created_at`

// PostgreSQLBindingRepository implements PolicyBinding persistence for PostgreSQL.
type PostgreSQLBindingRepository struct {
	db *sql.DB
}

// Create inserts a new binding row.
func (p *PostgreSQLBindingRepository) Create(
	ctx context.Context,
	binding *policyDomain.PolicyBinding,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO policy_bindings (` + bindingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		binding.ID,
		binding.PolicyID,
		binding.BindingType,
		binding.TargetID,
		binding.IsActive,
		binding.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create policy binding")
	}
	return nil
}

// Get retrieves a binding by (policy, type, target).
func (p *PostgreSQLBindingRepository) Get(
	ctx context.Context,
	policyID uuid.UUID,
	bindingType policyDomain.BindingType,
	targetID uuid.UUID,
) (*policyDomain.PolicyBinding, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + bindingColumns + `
			  FROM policy_bindings
			  WHERE policy_id = $1 AND binding_type = $2 AND target_id = $3
			  LIMIT 1`

	var binding policyDomain.PolicyBinding
	err := querier.QueryRowContext(ctx, query, policyID, bindingType, targetID).Scan(
		&binding.ID,
		&binding.PolicyID,
		&binding.BindingType,
		&binding.TargetID,
		&binding.IsActive,
		&binding.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, policyDomain.ErrBindingNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get policy binding")
	}
	return &binding, nil
}

// ListByPolicy retrieves all bindings of a policy.
func (p *PostgreSQLBindingRepository) ListByPolicy(
	ctx context.Context,
	policyID uuid.UUID,
) ([]*policyDomain.PolicyBinding, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + bindingColumns + `
			  FROM policy_bindings
			  WHERE policy_id = $1
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, policyID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list policy bindings")
	}
	defer rows.Close()

	return scanBindings(rows)
}

// ListByTarget retrieves all bindings pointing at a (type, target) pair.
func (p *PostgreSQLBindingRepository) ListByTarget(
	ctx context.Context,
	bindingType policyDomain.BindingType,
	targetID uuid.UUID,
) ([]*policyDomain.PolicyBinding, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + bindingColumns + `
			  FROM policy_bindings
			  WHERE binding_type = $1 AND target_id = $2
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, bindingType, targetID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list policy bindings")
	}
	defer rows.Close()

	return scanBindings(rows)
}

// Delete removes a binding row.
func (p *PostgreSQLBindingRepository) Delete(ctx context.Context, bindingID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM policy_bindings WHERE id = $1`

	_, err := querier.ExecContext(ctx, query, bindingID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete policy binding")
	}
	return nil
}

func scanBindings(rows *sql.Rows) ([]*policyDomain.PolicyBinding, error) {
	var bindings []*policyDomain.PolicyBinding
	for rows.Next() {
		var binding policyDomain.PolicyBinding
		err := rows.Scan(
			&binding.ID,
			&binding.PolicyID,
			&binding.BindingType,
			&binding.TargetID,
			&binding.IsActive,
			&binding.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan policy binding")
		}
		bindings = append(bindings, &binding)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate policy bindings")
	}
	return bindings, nil
}

// NewPostgreSQLBindingRepository creates a new PostgreSQL PolicyBinding repository instance.
func NewPostgreSQLBindingRepository(db *sql.DB) *PostgreSQLBindingRepository {
	return &PostgreSQLBindingRepository{db: db}
}
