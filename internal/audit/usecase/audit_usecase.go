package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	"github.com/allisson/vault/internal/requestctx"
)

// auditUseCase implements the AuditUseCase interface.
type auditUseCase struct {
	txManager database.TxManager
	auditRepo AuditRepository
	logger    *slog.Logger
}

// Record writes an audit entry. The insert runs in its own transaction so a
// failing audit write can never roll back the operation being recorded, and
// any error from the audit path is logged instead of returned.
func (a *auditUseCase) Record(ctx context.Context, record auditDomain.Record) {
	entry := &auditDomain.AuditEntry{
		ID:            uuid.Must(uuid.NewV7()),
		TeamID:        record.TeamID,
		UserID:        record.UserID,
		Operation:     record.Operation,
		Path:          record.Path,
		ResourceType:  record.ResourceType,
		ResourceID:    record.ResourceID,
		Success:       record.Success,
		ErrorMessage:  record.ErrorMessage,
		IPAddress:     requestctx.ClientIP(ctx),
		CorrelationID: requestctx.CorrelationID(ctx),
		Details:       record.Details,
		CreatedAt:     time.Now().UTC(),
	}

	err := a.txManager.WithNewTx(ctx, func(ctx context.Context) error {
		return a.auditRepo.Create(ctx, entry)
	})
	if err != nil {
		a.logger.Error("failed to write audit entry",
			slog.String("operation", entry.Operation),
			slog.String("correlation_id", entry.CorrelationID),
			slog.Any("error", err),
		)
	}
}

// Query retrieves team-scoped audit entries.
func (a *auditUseCase) Query(
	ctx context.Context,
	teamID uuid.UUID,
	filter auditDomain.QueryFilter,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	if (filter.ResourceType == nil) != (filter.ResourceID == nil) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "resource filter requires both type and id")
	}
	if (filter.From == nil) != (filter.Until == nil) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "time range filter requires both bounds")
	}
	return a.auditRepo.List(ctx, teamID, filter, offset, limit)
}

// Purge deletes entries older than retentionDays.
func (a *auditUseCase) Purge(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "retention days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return a.auditRepo.DeleteOlderThan(ctx, cutoff)
}

// NewAuditUseCase creates a new audit use case instance with the provided dependencies.
func NewAuditUseCase(
	txManager database.TxManager,
	auditRepo AuditRepository,
	logger *slog.Logger,
) AuditUseCase {
	return &auditUseCase{
		txManager: txManager,
		auditRepo: auditRepo,
		logger:    logger,
	}
}
