// Package repository implements audit trail persistence.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
)

const auditColumns = `id, team_id, user_id, operation, path, resource_type, resource_id,
	success, error_message, ip_address, correlation_id, details, created_at`

// PostgreSQLAuditRepository implements AuditEntry persistence for PostgreSQL.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// Create inserts a new audit entry row.
func (p *PostgreSQLAuditRepository) Create(ctx context.Context, entry *auditDomain.AuditEntry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO audit_entries (` + auditColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.TeamID,
		entry.UserID,
		entry.Operation,
		entry.Path,
		entry.ResourceType,
		entry.ResourceID,
		entry.Success,
		entry.ErrorMessage,
		entry.IPAddress,
		entry.CorrelationID,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit entry")
	}
	return nil
}

// List retrieves team-scoped audit entries, newest first. Only the highest
// priority filter present on the filter struct is applied.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	teamID uuid.UUID,
	filter auditDomain.QueryFilter,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	var (
		query string
		args  []any
	)

	switch {
	case filter.ResourceType != nil && filter.ResourceID != nil:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND resource_type = $2 AND resource_id = $3
				 ORDER BY created_at DESC
				 OFFSET $4 LIMIT $5`
		args = []any{teamID, *filter.ResourceType, *filter.ResourceID, offset, limit}
	case filter.UserID != nil:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND user_id = $2
				 ORDER BY created_at DESC
				 OFFSET $3 LIMIT $4`
		args = []any{teamID, *filter.UserID, offset, limit}
	case filter.Operation != nil:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND operation = $2
				 ORDER BY created_at DESC
				 OFFSET $3 LIMIT $4`
		args = []any{teamID, *filter.Operation, offset, limit}
	case filter.Path != nil:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND path = $2
				 ORDER BY created_at DESC
				 OFFSET $3 LIMIT $4`
		args = []any{teamID, *filter.Path, offset, limit}
	case filter.From != nil && filter.Until != nil:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND created_at >= $2 AND created_at < $3
				 ORDER BY created_at DESC
				 OFFSET $4 LIMIT $5`
		args = []any{teamID, *filter.From, *filter.Until, offset, limit}
	case filter.SuccessOnly:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1 AND success = TRUE
				 ORDER BY created_at DESC
				 OFFSET $2 LIMIT $3`
		args = []any{teamID, offset, limit}
	default:
		query = `SELECT ` + auditColumns + `
				 FROM audit_entries
				 WHERE team_id = $1
				 ORDER BY created_at DESC
				 OFFSET $2 LIMIT $3`
		args = []any{teamID, offset, limit}
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*auditDomain.AuditEntry
	for rows.Next() {
		var entry auditDomain.AuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.TeamID,
			&entry.UserID,
			&entry.Operation,
			&entry.Path,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.IPAddress,
			&entry.CorrelationID,
			&entry.Details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entries")
	}
	return entries, nil
}

// DeleteOlderThan removes entries created before the cutoff and reports how
// many rows went away.
func (p *PostgreSQLAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM audit_entries WHERE created_at < $1`

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit entries")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted audit entries")
	}
	return deleted, nil
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL AuditEntry repository instance.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}
