package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/vault/internal/app"
	"github.com/allisson/vault/internal/config"
)

// RunCleanAuditEntries deletes audit entries older than the given number of
// days. A non-positive days value falls back to the configured retention
// window (AUDIT_RETENTION_DAYS).
func RunCleanAuditEntries(ctx context.Context, days int) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	if days <= 0 {
		days = cfg.AuditRetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", days)
	}

	auditUseCase, err := container.AuditUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize audit use case: %w", err)
	}

	deleted, err := auditUseCase.Purge(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to purge audit entries: %w", err)
	}

	logger.Info("audit entries purged",
		slog.Int("retention_days", days),
		slog.Int64("deleted", deleted),
	)
	return nil
}
