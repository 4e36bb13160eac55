package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
)

const rotationHistoryColumns = `id, secret_id, path, strategy, previous_version,
	new_version, success, error_message, duration_ms, triggered_by_user_id, created_at`

// PostgreSQLRotationHistoryRepository implements RotationHistory persistence for PostgreSQL.
type PostgreSQLRotationHistoryRepository struct {
	db *sql.DB
}

// Create appends a rotation attempt record.
func (p *PostgreSQLRotationHistoryRepository) Create(
	ctx context.Context,
	history *rotationDomain.RotationHistory,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO rotation_history (` + rotationHistoryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		history.ID,
		history.SecretID,
		history.Path,
		history.Strategy,
		history.PreviousVersion,
		history.NewVersion,
		history.Success,
		history.ErrorMessage,
		history.DurationMs,
		history.TriggeredByUserID,
		history.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create rotation history")
	}
	return nil
}

// ListBySecret retrieves rotation attempts of a secret, newest first.
func (p *PostgreSQLRotationHistoryRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*rotationDomain.RotationHistory, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationHistoryColumns + `
			  FROM rotation_history
			  WHERE secret_id = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, secretID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotation history")
	}
	defer rows.Close()

	var entries []*rotationDomain.RotationHistory
	for rows.Next() {
		var entry rotationDomain.RotationHistory
		err := rows.Scan(
			&entry.ID,
			&entry.SecretID,
			&entry.Path,
			&entry.Strategy,
			&entry.PreviousVersion,
			&entry.NewVersion,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.DurationMs,
			&entry.TriggeredByUserID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rotation history")
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotation history")
	}
	return entries, nil
}

// NewPostgreSQLRotationHistoryRepository creates a new PostgreSQL RotationHistory repository instance.
func NewPostgreSQLRotationHistoryRepository(db *sql.DB) *PostgreSQLRotationHistoryRepository {
	return &PostgreSQLRotationHistoryRepository{db: db}
}
