// Package usecase implements audit trail recording and querying.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
)

// AuditRepository defines the interface for AuditEntry persistence operations.
type AuditRepository interface {
	Create(ctx context.Context, entry *auditDomain.AuditEntry) error
	List(ctx context.Context, teamID uuid.UUID, filter auditDomain.QueryFilter, offset, limit int) ([]*auditDomain.AuditEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditUseCase defines the interface for the audit trail.
type AuditUseCase interface {
	// Record writes an audit entry in an independent transaction. Failures are
	// swallowed and logged so the primary operation is never affected; Record
	// therefore returns nothing.
	Record(ctx context.Context, record auditDomain.Record)

	// Query retrieves team-scoped entries, newest first, applying at most one
	// filter by priority.
	Query(ctx context.Context, teamID uuid.UUID, filter auditDomain.QueryFilter, offset, limit int) ([]*auditDomain.AuditEntry, error)

	// Purge deletes entries older than the retention window and reports how
	// many rows were removed.
	Purge(ctx context.Context, retentionDays int) (int64, error)
}
