// Package repository implements PostgreSQL persistence for secret management.
// All queries go through database.GetTx so they join an ambient transaction
// when one is present in the context.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

const secretColumns = `id, team_id, path, name, description, secret_type, current_version,
	max_versions, retention_days, expires_at, last_accessed_at, last_rotated_at,
	owner_user_id, reference_arn, is_active, created_at, updated_at`

// PostgreSQLSecretRepository implements Secret persistence for PostgreSQL.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// Create inserts a new secret row.
func (p *PostgreSQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secrets (` + secretColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.TeamID,
		secret.Path,
		secret.Name,
		secret.Description,
		secret.Type,
		secret.CurrentVersion,
		secret.MaxVersions,
		secret.RetentionDays,
		secret.ExpiresAt,
		secret.LastAccessedAt,
		secret.LastRotatedAt,
		secret.OwnerUserID,
		secret.ReferenceArn,
		secret.IsActive,
		secret.CreatedAt,
		secret.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create secret")
	}
	return nil
}

// Update persists the mutable fields of a secret.
func (p *PostgreSQLSecretRepository) Update(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets
			  SET name = $1, description = $2, current_version = $3, max_versions = $4,
				  retention_days = $5, expires_at = $6, last_accessed_at = $7,
				  last_rotated_at = $8, is_active = $9, updated_at = $10
			  WHERE id = $11`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.Name,
		secret.Description,
		secret.CurrentVersion,
		secret.MaxVersions,
		secret.RetentionDays,
		secret.ExpiresAt,
		secret.LastAccessedAt,
		secret.LastRotatedAt,
		secret.IsActive,
		secret.UpdatedAt,
		secret.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret")
	}
	return nil
}

// GetByID retrieves a secret by its identifier.
func (p *PostgreSQLSecretRepository) GetByID(
	ctx context.Context,
	secretID uuid.UUID,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = $1 LIMIT 1`

	return p.scanOne(querier.QueryRowContext(ctx, query, secretID))
}

// GetByPath retrieves a secret by its team and path.
func (p *PostgreSQLSecretRepository) GetByPath(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets WHERE team_id = $1 AND path = $2 LIMIT 1`

	return p.scanOne(querier.QueryRowContext(ctx, query, teamID, path))
}

// List retrieves secrets for a team applying at most one filter, in priority
// order: secret type, path prefix, active only, unfiltered.
func (p *PostgreSQLSecretRepository) List(
	ctx context.Context,
	teamID uuid.UUID,
	filter secretsDomain.ListFilter,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	var query string
	var args []any

	switch {
	case filter.Type != nil:
		query = `SELECT ` + secretColumns + ` FROM secrets
				 WHERE team_id = $1 AND secret_type = $2
				 ORDER BY path ASC OFFSET $3 LIMIT $4`
		args = []any{teamID, *filter.Type, offset, limit}
	case filter.PathPrefix != nil:
		query = `SELECT ` + secretColumns + ` FROM secrets
				 WHERE team_id = $1 AND path LIKE $2 || '%'
				 ORDER BY path ASC OFFSET $3 LIMIT $4`
		args = []any{teamID, *filter.PathPrefix, offset, limit}
	case filter.ActiveOnly:
		query = `SELECT ` + secretColumns + ` FROM secrets
				 WHERE team_id = $1 AND is_active = TRUE
				 ORDER BY path ASC OFFSET $2 LIMIT $3`
		args = []any{teamID, offset, limit}
	default:
		query = `SELECT ` + secretColumns + ` FROM secrets
				 WHERE team_id = $1
				 ORDER BY path ASC OFFSET $2 LIMIT $3`
		args = []any{teamID, offset, limit}
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	defer rows.Close()

	return p.scanMany(rows)
}

// Search retrieves secrets whose name contains the term, case-insensitively.
func (p *PostgreSQLSecretRepository) Search(
	ctx context.Context,
	teamID uuid.UUID,
	term string,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + `
			  FROM secrets
			  WHERE team_id = $1 AND name ILIKE '%' || $2 || '%'
			  ORDER BY path ASC
			  OFFSET $3 LIMIT $4`

	rows, err := querier.QueryContext(ctx, query, teamID, term, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to search secrets")
	}
	defer rows.Close()

	return p.scanMany(rows)
}

// ListPaths returns the deduplicated, sorted paths of active secrets under a
// prefix.
func (p *PostgreSQLSecretRepository) ListPaths(
	ctx context.Context,
	teamID uuid.UUID,
	prefix string,
) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT DISTINCT path
			  FROM secrets
			  WHERE team_id = $1 AND path LIKE $2 || '%' AND is_active = TRUE
			  ORDER BY path ASC`

	rows, err := querier.QueryContext(ctx, query, teamID, prefix)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret paths")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret path")
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret paths")
	}
	return paths, nil
}

// ListExpiring returns active secrets whose expiresAt falls in [now, until).
func (p *PostgreSQLSecretRepository) ListExpiring(
	ctx context.Context,
	teamID uuid.UUID,
	now, until time.Time,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + `
			  FROM secrets
			  WHERE team_id = $1 AND is_active = TRUE
				AND expires_at >= $2 AND expires_at < $3
			  ORDER BY expires_at ASC`

	rows, err := querier.QueryContext(ctx, query, teamID, now, until)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expiring secrets")
	}
	defer rows.Close()

	return p.scanMany(rows)
}

// HardDelete removes a secret row; version and metadata rows are removed by
// foreign-key cascade.
func (p *PostgreSQLSecretRepository) HardDelete(ctx context.Context, secretID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM secrets WHERE id = $1`

	_, err := querier.ExecContext(ctx, query, secretID)
	if err != nil {
		return apperrors.Wrap(err, "failed to hard delete secret")
	}
	return nil
}

func (p *PostgreSQLSecretRepository) scanOne(row *sql.Row) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	err := row.Scan(
		&secret.ID,
		&secret.TeamID,
		&secret.Path,
		&secret.Name,
		&secret.Description,
		&secret.Type,
		&secret.CurrentVersion,
		&secret.MaxVersions,
		&secret.RetentionDays,
		&secret.ExpiresAt,
		&secret.LastAccessedAt,
		&secret.LastRotatedAt,
		&secret.OwnerUserID,
		&secret.ReferenceArn,
		&secret.IsActive,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}
	return &secret, nil
}

func (p *PostgreSQLSecretRepository) scanMany(rows *sql.Rows) ([]*secretsDomain.Secret, error) {
	var secrets []*secretsDomain.Secret
	for rows.Next() {
		var secret secretsDomain.Secret
		err := rows.Scan(
			&secret.ID,
			&secret.TeamID,
			&secret.Path,
			&secret.Name,
			&secret.Description,
			&secret.Type,
			&secret.CurrentVersion,
			&secret.MaxVersions,
			&secret.RetentionDays,
			&secret.ExpiresAt,
			&secret.LastAccessedAt,
			&secret.LastRotatedAt,
			&secret.OwnerUserID,
			&secret.ReferenceArn,
			&secret.IsActive,
			&secret.CreatedAt,
			&secret.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret")
		}
		secrets = append(secrets, &secret)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secrets")
	}
	return secrets, nil
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL Secret repository instance.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}
