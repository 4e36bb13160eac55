// Package repository implements dynamic lease persistence.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	leaseDomain "github.com/allisson/vault/internal/lease/domain"
)

const leaseColumns = `id, secret_id, secret_path, backend_type, encrypted_credentials,
	status, ttl_seconds, expires_at, revoked_at, revoked_by_user_id,
	requested_by_user_id, metadata, created_at`

// PostgreSQLLeaseRepository implements DynamicLease persistence for PostgreSQL.
type PostgreSQLLeaseRepository struct {
	db *sql.DB
}

// Create inserts a new lease row.
func (p *PostgreSQLLeaseRepository) Create(ctx context.Context, lease *leaseDomain.DynamicLease) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO dynamic_leases (` + leaseColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.ID,
		lease.SecretID,
		lease.SecretPath,
		lease.BackendType,
		lease.EncryptedCredentials,
		lease.Status,
		lease.TTLSeconds,
		lease.ExpiresAt,
		lease.RevokedAt,
		lease.RevokedByUserID,
		lease.RequestedByUserID,
		lease.Metadata,
		lease.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create lease")
	}
	return nil
}

// Update persists lease status transitions.
func (p *PostgreSQLLeaseRepository) Update(ctx context.Context, lease *leaseDomain.DynamicLease) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE dynamic_leases
			  SET status = $2, revoked_at = $3, revoked_by_user_id = $4
			  WHERE id = $1`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.ID,
		lease.Status,
		lease.RevokedAt,
		lease.RevokedByUserID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update lease")
	}
	return nil
}

// GetByID retrieves a lease by its lease id string.
func (p *PostgreSQLLeaseRepository) GetByID(ctx context.Context, leaseID string) (*leaseDomain.DynamicLease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM dynamic_leases
			  WHERE id = $1
			  LIMIT 1`

	var lease leaseDomain.DynamicLease
	err := scanLease(querier.QueryRowContext(ctx, query, leaseID), &lease)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, leaseDomain.ErrLeaseNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get lease")
	}
	return &lease, nil
}

// ListBySecret retrieves leases of a secret, newest first.
func (p *PostgreSQLLeaseRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*leaseDomain.DynamicLease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM dynamic_leases
			  WHERE secret_id = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, secretID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list leases")
	}
	defer rows.Close()

	return collectLeases(rows)
}

// ListActiveBySecret retrieves the ACTIVE leases of a secret.
func (p *PostgreSQLLeaseRepository) ListActiveBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*leaseDomain.DynamicLease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM dynamic_leases
			  WHERE secret_id = $1 AND status = $2
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, secretID, leaseDomain.LeaseStatusActive)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active leases")
	}
	defer rows.Close()

	return collectLeases(rows)
}

// ListExpired retrieves ACTIVE leases whose expiry has passed.
func (p *PostgreSQLLeaseRepository) ListExpired(
	ctx context.Context,
	now time.Time,
) ([]*leaseDomain.DynamicLease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM dynamic_leases
			  WHERE status = $1 AND expires_at < $2
			  ORDER BY expires_at ASC`

	rows, err := querier.QueryContext(ctx, query, leaseDomain.LeaseStatusActive, now)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired leases")
	}
	defer rows.Close()

	return collectLeases(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLease(row rowScanner, lease *leaseDomain.DynamicLease) error {
	return row.Scan(
		&lease.ID,
		&lease.SecretID,
		&lease.SecretPath,
		&lease.BackendType,
		&lease.EncryptedCredentials,
		&lease.Status,
		&lease.TTLSeconds,
		&lease.ExpiresAt,
		&lease.RevokedAt,
		&lease.RevokedByUserID,
		&lease.RequestedByUserID,
		&lease.Metadata,
		&lease.CreatedAt,
	)
}

func collectLeases(rows *sql.Rows) ([]*leaseDomain.DynamicLease, error) {
	var leases []*leaseDomain.DynamicLease
	for rows.Next() {
		var lease leaseDomain.DynamicLease
		if err := scanLease(rows, &lease); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan lease")
		}
		leases = append(leases, &lease)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate leases")
	}
	return leases, nil
}

// NewPostgreSQLLeaseRepository creates a new PostgreSQL DynamicLease repository instance.
func NewPostgreSQLLeaseRepository(db *sql.DB) *PostgreSQLLeaseRepository {
	return &PostgreSQLLeaseRepository{db: db}
}
