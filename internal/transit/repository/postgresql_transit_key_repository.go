// Package repository implements PostgreSQL persistence for transit keys.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	transitDomain "github.com/allisson/vault/internal/transit/domain"
)

const transitKeyColumns = `id, team_id, name, description, key_material, current_version,
	min_decryption_version, is_deletable, created_by_user_id, created_at, updated_at`

// PostgreSQLTransitKeyRepository implements TransitKey persistence for PostgreSQL.
type PostgreSQLTransitKeyRepository struct {
	db *sql.DB
}

// Create inserts a new transit key row.
func (p *PostgreSQLTransitKeyRepository) Create(
	ctx context.Context,
	key *transitDomain.TransitKey,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO transit_keys (` + transitKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.TeamID,
		key.Name,
		key.Description,
		key.KeyMaterial,
		key.CurrentVersion,
		key.MinDecryptionVersion,
		key.IsDeletable,
		key.CreatedByUserID,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create transit key")
	}
	return nil
}

// Update persists the mutable fields of a transit key.
func (p *PostgreSQLTransitKeyRepository) Update(
	ctx context.Context,
	key *transitDomain.TransitKey,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE transit_keys
			  SET description = $1, key_material = $2, current_version = $3,
				  min_decryption_version = $4, is_deletable = $5, updated_at = $6
			  WHERE id = $7`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.Description,
		key.KeyMaterial,
		key.CurrentVersion,
		key.MinDecryptionVersion,
		key.IsDeletable,
		key.UpdatedAt,
		key.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update transit key")
	}
	return nil
}

// GetByName retrieves a transit key by team and name.
func (p *PostgreSQLTransitKeyRepository) GetByName(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + transitKeyColumns + `
			  FROM transit_keys
			  WHERE team_id = $1 AND name = $2
			  LIMIT 1`

	return scanTransitKey(querier.QueryRowContext(ctx, query, teamID, name))
}

// GetByNameForUpdate retrieves a transit key with a row lock, serialising
// concurrent rotations of the same key. Must run inside a transaction.
func (p *PostgreSQLTransitKeyRepository) GetByNameForUpdate(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + transitKeyColumns + `
			  FROM transit_keys
			  WHERE team_id = $1 AND name = $2
			  LIMIT 1
			  FOR UPDATE`

	return scanTransitKey(querier.QueryRowContext(ctx, query, teamID, name))
}

// List retrieves the transit keys of a team ordered by name.
func (p *PostgreSQLTransitKeyRepository) List(
	ctx context.Context,
	teamID uuid.UUID,
	offset, limit int,
) ([]*transitDomain.TransitKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + transitKeyColumns + `
			  FROM transit_keys
			  WHERE team_id = $1
			  ORDER BY name ASC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, teamID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list transit keys")
	}
	defer rows.Close()

	var keys []*transitDomain.TransitKey
	for rows.Next() {
		var key transitDomain.TransitKey
		err := rows.Scan(
			&key.ID,
			&key.TeamID,
			&key.Name,
			&key.Description,
			&key.KeyMaterial,
			&key.CurrentVersion,
			&key.MinDecryptionVersion,
			&key.IsDeletable,
			&key.CreatedByUserID,
			&key.CreatedAt,
			&key.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan transit key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate transit keys")
	}
	return keys, nil
}

// Delete removes a transit key row.
func (p *PostgreSQLTransitKeyRepository) Delete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM transit_keys WHERE id = $1`

	_, err := querier.ExecContext(ctx, query, keyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete transit key")
	}
	return nil
}

func scanTransitKey(row *sql.Row) (*transitDomain.TransitKey, error) {
	var key transitDomain.TransitKey
	err := row.Scan(
		&key.ID,
		&key.TeamID,
		&key.Name,
		&key.Description,
		&key.KeyMaterial,
		&key.CurrentVersion,
		&key.MinDecryptionVersion,
		&key.IsDeletable,
		&key.CreatedByUserID,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transitDomain.ErrTransitKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get transit key")
	}
	return &key, nil
}

// NewPostgreSQLTransitKeyRepository creates a new PostgreSQL TransitKey repository instance.
func NewPostgreSQLTransitKeyRepository(db *sql.DB) *PostgreSQLTransitKeyRepository {
	return &PostgreSQLTransitKeyRepository{db: db}
}
