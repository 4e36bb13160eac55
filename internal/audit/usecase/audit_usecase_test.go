package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	apperrors "github.com/allisson/vault/internal/errors"
	"github.com/allisson/vault/internal/requestctx"
)

// recordingTxManager runs functions inline and remembers which entry point
// was used.
type recordingTxManager struct {
	withTxCalls    int
	withNewTxCalls int
}

func (m *recordingTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.withTxCalls++
	return fn(ctx)
}

func (m *recordingTxManager) WithNewTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.withNewTxCalls++
	return fn(ctx)
}

type fakeAuditRepo struct {
	entries   []*auditDomain.AuditEntry
	createErr error
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *auditDomain.AuditEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) List(
	_ context.Context,
	teamID uuid.UUID,
	filter auditDomain.QueryFilter,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	var out []*auditDomain.AuditEntry
	for _, entry := range f.entries {
		if entry.TeamID == nil || *entry.TeamID != teamID {
			continue
		}
		switch {
		case filter.ResourceType != nil && filter.ResourceID != nil:
			if entry.ResourceType == nil || *entry.ResourceType != *filter.ResourceType {
				continue
			}
			if entry.ResourceID == nil || *entry.ResourceID != *filter.ResourceID {
				continue
			}
		case filter.UserID != nil:
			if entry.UserID == nil || *entry.UserID != *filter.UserID {
				continue
			}
		case filter.Operation != nil:
			if entry.Operation != *filter.Operation {
				continue
			}
		case filter.SuccessOnly:
			if !entry.Success {
				continue
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeAuditRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*auditDomain.AuditEntry
	var deleted int64
	for _, entry := range f.entries {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	f.entries = kept
	return deleted, nil
}

func newAuditEnv() (AuditUseCase, *fakeAuditRepo, *recordingTxManager) {
	repo := &fakeAuditRepo{}
	txManager := &recordingTxManager{}
	useCase := NewAuditUseCase(txManager, repo, slog.Default())
	return useCase, repo, txManager
}

func strPtr(s string) *string { return &s }

func TestAuditUseCaseRecord(t *testing.T) {
	t.Run("Success_CapturesRequestContext", func(t *testing.T) {
		useCase, repo, _ := newAuditEnv()
		teamID := uuid.Must(uuid.NewV7())
		userID := uuid.Must(uuid.NewV7())

		ctx := requestctx.WithCorrelationID(context.Background(), "corr-123")
		ctx = requestctx.WithClientIP(ctx, "10.0.0.9")

		useCase.Record(ctx, auditDomain.Record{
			TeamID:    &teamID,
			UserID:    &userID,
			Operation: "secret_create",
			Path:      strPtr("/services/app/db"),
			Success:   true,
		})

		require.Len(t, repo.entries, 1)
		entry := repo.entries[0]
		assert.Equal(t, "secret_create", entry.Operation)
		assert.Equal(t, "corr-123", entry.CorrelationID)
		assert.Equal(t, "10.0.0.9", entry.IPAddress)
		assert.Equal(t, teamID, *entry.TeamID)
		assert.True(t, entry.Success)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	t.Run("Success_DefaultsWithoutRequest", func(t *testing.T) {
		useCase, repo, _ := newAuditEnv()

		useCase.Record(context.Background(), auditDomain.Record{
			Operation:    "lease_expire",
			Success:      false,
			ErrorMessage: strPtr("backend unreachable"),
		})

		require.Len(t, repo.entries, 1)
		entry := repo.entries[0]
		assert.Equal(t, requestctx.DefaultCorrelationID, entry.CorrelationID)
		assert.Equal(t, requestctx.DefaultClientIP, entry.IPAddress)
		assert.Nil(t, entry.TeamID)
		assert.Equal(t, "backend unreachable", *entry.ErrorMessage)
	})

	t.Run("Success_UsesIndependentTransaction", func(t *testing.T) {
		useCase, _, txManager := newAuditEnv()

		useCase.Record(context.Background(), auditDomain.Record{Operation: "seal", Success: true})

		assert.Equal(t, 1, txManager.withNewTxCalls)
		assert.Equal(t, 0, txManager.withTxCalls)
	})

	t.Run("Success_SwallowsRepositoryFailure", func(t *testing.T) {
		useCase, repo, _ := newAuditEnv()
		repo.createErr = errors.New("audit db down")

		assert.NotPanics(t, func() {
			useCase.Record(context.Background(), auditDomain.Record{Operation: "secret_get", Success: true})
		})
		assert.Empty(t, repo.entries)
	})
}

func TestAuditUseCaseQuery(t *testing.T) {
	useCase, repo, _ := newAuditEnv()
	teamID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())
	otherUserID := uuid.Must(uuid.NewV7())

	ctx := context.Background()
	useCase.Record(ctx, auditDomain.Record{TeamID: &teamID, UserID: &userID, Operation: "secret_create", Success: true})
	useCase.Record(ctx, auditDomain.Record{TeamID: &teamID, UserID: &otherUserID, Operation: "secret_get", Success: false})
	require.Len(t, repo.entries, 2)

	t.Run("Success_FilterByUser", func(t *testing.T) {
		entries, err := useCase.Query(ctx, teamID, auditDomain.QueryFilter{UserID: &userID}, 0, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "secret_create", entries[0].Operation)
	})

	t.Run("Success_FilterBySuccessOnly", func(t *testing.T) {
		entries, err := useCase.Query(ctx, teamID, auditDomain.QueryFilter{SuccessOnly: true}, 0, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Success)
	})

	t.Run("Error_HalfResourceFilter", func(t *testing.T) {
		_, err := useCase.Query(ctx, teamID, auditDomain.QueryFilter{ResourceType: strPtr("secret")}, 0, 10)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_HalfTimeRange", func(t *testing.T) {
		now := time.Now().UTC()
		_, err := useCase.Query(ctx, teamID, auditDomain.QueryFilter{From: &now}, 0, 10)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestAuditUseCasePurge(t *testing.T) {
	t.Run("Success_DeletesOldEntries", func(t *testing.T) {
		useCase, repo, _ := newAuditEnv()
		teamID := uuid.Must(uuid.NewV7())

		old := &auditDomain.AuditEntry{
			ID:        uuid.Must(uuid.NewV7()),
			TeamID:    &teamID,
			Operation: "secret_get",
			CreatedAt: time.Now().UTC().AddDate(0, 0, -100),
		}
		recent := &auditDomain.AuditEntry{
			ID:        uuid.Must(uuid.NewV7()),
			TeamID:    &teamID,
			Operation: "secret_get",
			CreatedAt: time.Now().UTC(),
		}
		repo.entries = []*auditDomain.AuditEntry{old, recent}

		deleted, err := useCase.Purge(context.Background(), 30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
		require.Len(t, repo.entries, 1)
		assert.Equal(t, recent.ID, repo.entries[0].ID)
	})

	t.Run("Error_NonPositiveRetention", func(t *testing.T) {
		useCase, _, _ := newAuditEnv()

		_, err := useCase.Purge(context.Background(), 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
