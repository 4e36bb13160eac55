// Package repository implements rotation persistence.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
)

const rotationPolicyColumns = `id, secret_id, strategy, interval_hours, random_length,
	random_charset, external_api_url, external_api_headers, script_command,
	is_active, failure_count, max_failures, last_rotated_at, next_rotation_at,
	created_at, updated_at`

// PostgreSQLRotationPolicyRepository implements RotationPolicy persistence for PostgreSQL.
type PostgreSQLRotationPolicyRepository struct {
	db *sql.DB
}

// Create inserts a new rotation policy row.
func (p *PostgreSQLRotationPolicyRepository) Create(
	ctx context.Context,
	policy *rotationDomain.RotationPolicy,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO rotation_policies (` + rotationPolicyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := querier.ExecContext(
		ctx,
		query,
		policy.ID,
		policy.SecretID,
		policy.Strategy,
		policy.IntervalHours,
		policy.RandomLength,
		policy.RandomCharset,
		policy.ExternalAPIURL,
		policy.ExternalAPIHeaders,
		policy.ScriptCommand,
		policy.IsActive,
		policy.FailureCount,
		policy.MaxFailures,
		policy.LastRotatedAt,
		policy.NextRotationAt,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create rotation policy")
	}
	return nil
}

// Update persists changes to a rotation policy.
func (p *PostgreSQLRotationPolicyRepository) Update(
	ctx context.Context,
	policy *rotationDomain.RotationPolicy,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE rotation_policies
			  SET strategy = $2, interval_hours = $3, random_length = $4,
				  random_charset = $5, external_api_url = $6,
				  external_api_headers = $7, script_command = $8, is_active = $9,
				  failure_count = $10, max_failures = $11, last_rotated_at = $12,
				  next_rotation_at = $13, updated_at = $14
			  WHERE id = $1`

	_, err := querier.ExecContext(
		ctx,
		query,
		policy.ID,
		policy.Strategy,
		policy.IntervalHours,
		policy.RandomLength,
		policy.RandomCharset,
		policy.ExternalAPIURL,
		policy.ExternalAPIHeaders,
		policy.ScriptCommand,
		policy.IsActive,
		policy.FailureCount,
		policy.MaxFailures,
		policy.LastRotatedAt,
		policy.NextRotationAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation policy")
	}
	return nil
}

// GetByID retrieves a rotation policy by id.
func (p *PostgreSQLRotationPolicyRepository) GetByID(
	ctx context.Context,
	policyID uuid.UUID,
) (*rotationDomain.RotationPolicy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationPolicyColumns + `
			  FROM rotation_policies
			  WHERE id = $1
			  LIMIT 1`

	return p.scanOne(querier.QueryRowContext(ctx, query, policyID))
}

// GetBySecretID retrieves the rotation policy of a secret.
func (p *PostgreSQLRotationPolicyRepository) GetBySecretID(
	ctx context.Context,
	secretID uuid.UUID,
) (*rotationDomain.RotationPolicy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationPolicyColumns + `
			  FROM rotation_policies
			  WHERE secret_id = $1
			  LIMIT 1`

	return p.scanOne(querier.QueryRowContext(ctx, query, secretID))
}

// ListDue retrieves active policies whose next rotation time has passed.
func (p *PostgreSQLRotationPolicyRepository) ListDue(
	ctx context.Context,
	now time.Time,
) ([]*rotationDomain.RotationPolicy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationPolicyColumns + `
			  FROM rotation_policies
			  WHERE is_active = TRUE AND next_rotation_at < $1
			  ORDER BY next_rotation_at ASC`

	rows, err := querier.QueryContext(ctx, query, now)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due rotation policies")
	}
	defer rows.Close()

	var policies []*rotationDomain.RotationPolicy
	for rows.Next() {
		policy, err := p.scanRow(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotation policies")
	}
	return policies, nil
}

// Delete removes a rotation policy row.
func (p *PostgreSQLRotationPolicyRepository) Delete(ctx context.Context, policyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM rotation_policies WHERE id = $1`

	_, err := querier.ExecContext(ctx, query, policyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rotation policy")
	}
	return nil
}

func (p *PostgreSQLRotationPolicyRepository) scanOne(row *sql.Row) (*rotationDomain.RotationPolicy, error) {
	var policy rotationDomain.RotationPolicy
	err := row.Scan(
		&policy.ID,
		&policy.SecretID,
		&policy.Strategy,
		&policy.IntervalHours,
		&policy.RandomLength,
		&policy.RandomCharset,
		&policy.ExternalAPIURL,
		&policy.ExternalAPIHeaders,
		&policy.ScriptCommand,
		&policy.IsActive,
		&policy.FailureCount,
		&policy.MaxFailures,
		&policy.LastRotatedAt,
		&policy.NextRotationAt,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rotationDomain.ErrRotationPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotation policy")
	}
	return &policy, nil
}

func (p *PostgreSQLRotationPolicyRepository) scanRow(rows *sql.Rows) (*rotationDomain.RotationPolicy, error) {
	var policy rotationDomain.RotationPolicy
	err := rows.Scan(
		&policy.ID,
		&policy.SecretID,
		&policy.Strategy,
		&policy.IntervalHours,
		&policy.RandomLength,
		&policy.RandomCharset,
		&policy.ExternalAPIURL,
		&policy.ExternalAPIHeaders,
		&policy.ScriptCommand,
		&policy.IsActive,
		&policy.FailureCount,
		&policy.MaxFailures,
		&policy.LastRotatedAt,
		&policy.NextRotationAt,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan rotation policy")
	}
	return &policy, nil
}

// NewPostgreSQLRotationPolicyRepository creates a new PostgreSQL RotationPolicy repository instance.
func NewPostgreSQLRotationPolicyRepository(db *sql.DB) *PostgreSQLRotationPolicyRepository {
	return &PostgreSQLRotationPolicyRepository{db: db}
}
