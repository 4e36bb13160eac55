package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
)

// PostgreSQLSecretMetadataRepository implements key/value metadata persistence
// for secrets. Metadata is replaced as a whole set, never patched.
type PostgreSQLSecretMetadataRepository struct {
	db *sql.DB
}

// Replace deletes the existing metadata set of a secret and inserts the new
// one. Callers should run it inside a transaction.
func (p *PostgreSQLSecretMetadataRepository) Replace(
	ctx context.Context,
	secretID uuid.UUID,
	metadata map[string]string,
) error {
	querier := database.GetTx(ctx, p.db)

	deleteQuery := `DELETE FROM secret_metadata WHERE secret_id = $1`
	if _, err := querier.ExecContext(ctx, deleteQuery, secretID); err != nil {
		return apperrors.Wrap(err, "failed to clear secret metadata")
	}

	insertQuery := `INSERT INTO secret_metadata (secret_id, key, value) VALUES ($1, $2, $3)`
	for key, value := range metadata {
		if _, err := querier.ExecContext(ctx, insertQuery, secretID, key, value); err != nil {
			return apperrors.Wrap(err, "failed to insert secret metadata")
		}
	}
	return nil
}

// GetBySecret retrieves the full metadata set of a secret.
func (p *PostgreSQLSecretMetadataRepository) GetBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) (map[string]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT key, value FROM secret_metadata WHERE secret_id = $1`

	rows, err := querier.QueryContext(ctx, query, secretID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get secret metadata")
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret metadata")
		}
		metadata[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret metadata")
	}
	return metadata, nil
}

// NewPostgreSQLSecretMetadataRepository creates a new PostgreSQL SecretMetadata repository instance.
func NewPostgreSQLSecretMetadataRepository(db *sql.DB) *PostgreSQLSecretMetadataRepository {
	return &PostgreSQLSecretMetadataRepository{db: db}
}
