package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

const secretVersionColumns = `id, secret_id, version_number, encrypted_value,
	encryption_key_id, change_description, created_by_user_id, is_destroyed, created_at`

// PostgreSQLSecretVersionRepository implements SecretVersion persistence for
// PostgreSQL. Version rows are immutable except for the destroy operation.
type PostgreSQLSecretVersionRepository struct {
	db *sql.DB
}

// Create inserts a new version row.
func (p *PostgreSQLSecretVersionRepository) Create(
	ctx context.Context,
	version *secretsDomain.SecretVersion,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secret_versions (` + secretVersionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.ID,
		version.SecretID,
		version.VersionNumber,
		version.EncryptedValue,
		version.EncryptionKeyID,
		version.ChangeDescription,
		version.CreatedByUserID,
		version.IsDestroyed,
		version.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create secret version")
	}
	return nil
}

// GetByNumber retrieves one version of a secret by its version number.
func (p *PostgreSQLSecretVersionRepository) GetByNumber(
	ctx context.Context,
	secretID uuid.UUID,
	versionNumber uint,
) (*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretVersionColumns + `
			  FROM secret_versions
			  WHERE secret_id = $1 AND version_number = $2
			  LIMIT 1`

	var version secretsDomain.SecretVersion
	err := querier.QueryRowContext(ctx, query, secretID, versionNumber).Scan(
		&version.ID,
		&version.SecretID,
		&version.VersionNumber,
		&version.EncryptedValue,
		&version.EncryptionKeyID,
		&version.ChangeDescription,
		&version.CreatedByUserID,
		&version.IsDestroyed,
		&version.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, secretsDomain.ErrVersionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret version")
	}
	return &version, nil
}

// ListBySecret retrieves all versions of a secret in descending version order.
func (p *PostgreSQLSecretVersionRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretVersionColumns + `
			  FROM secret_versions
			  WHERE secret_id = $1
			  ORDER BY version_number DESC`

	rows, err := querier.QueryContext(ctx, query, secretID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret versions")
	}
	defer rows.Close()

	var versions []*secretsDomain.SecretVersion
	for rows.Next() {
		var version secretsDomain.SecretVersion
		err := rows.Scan(
			&version.ID,
			&version.SecretID,
			&version.VersionNumber,
			&version.EncryptedValue,
			&version.EncryptionKeyID,
			&version.ChangeDescription,
			&version.CreatedByUserID,
			&version.IsDestroyed,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret version")
		}
		versions = append(versions, &version)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret versions")
	}
	return versions, nil
}

// Destroy marks a version as destroyed and overwrites its encrypted value
// with the sentinel. The row remains for audit and listing.
func (p *PostgreSQLSecretVersionRepository) Destroy(ctx context.Context, versionID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secret_versions
			  SET is_destroyed = TRUE, encrypted_value = $1
			  WHERE id = $2`

	_, err := querier.ExecContext(ctx, query, secretsDomain.DestroyedValueSentinel, versionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to destroy secret version")
	}
	return nil
}

// NewPostgreSQLSecretVersionRepository creates a new PostgreSQL SecretVersion repository instance.
func NewPostgreSQLSecretVersionRepository(db *sql.DB) *PostgreSQLSecretVersionRepository {
	return &PostgreSQLSecretVersionRepository{db: db}
}
