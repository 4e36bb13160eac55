package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

func secretRows(secret *secretsDomain.Secret) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "team_id", "path", "name", "description", "secret_type", "current_version",
		"max_versions", "retention_days", "expires_at", "last_accessed_at", "last_rotated_at",
		"owner_user_id", "reference_arn", "is_active", "created_at", "updated_at",
	}).AddRow(
		secret.ID, secret.TeamID, secret.Path, secret.Name, secret.Description,
		secret.Type, secret.CurrentVersion, secret.MaxVersions, secret.RetentionDays,
		secret.ExpiresAt, secret.LastAccessedAt, secret.LastRotatedAt,
		secret.OwnerUserID, secret.ReferenceArn, secret.IsActive,
		secret.CreatedAt, secret.UpdatedAt,
	)
}

func sampleSecret() *secretsDomain.Secret {
	now := time.Now().UTC()
	return &secretsDomain.Secret{
		ID:             uuid.Must(uuid.NewV7()),
		TeamID:         uuid.Must(uuid.NewV7()),
		Path:           "services/app/db",
		Name:           "app database password",
		Type:           secretsDomain.SecretTypeStatic,
		CurrentVersion: 1,
		OwnerUserID:    uuid.Must(uuid.NewV7()),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgreSQLSecretRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLSecretRepository(db)
	secret := sampleSecret()

	mock.ExpectExec("INSERT INTO secrets").
		WithArgs(
			secret.ID, secret.TeamID, secret.Path, secret.Name, secret.Description,
			secret.Type, secret.CurrentVersion, secret.MaxVersions, secret.RetentionDays,
			secret.ExpiresAt, secret.LastAccessedAt, secret.LastRotatedAt,
			secret.OwnerUserID, secret.ReferenceArn, secret.IsActive,
			secret.CreatedAt, secret.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), secret)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSecretRepository_GetByPath(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLSecretRepository(db)
		secret := sampleSecret()

		mock.ExpectQuery("SELECT (.+) FROM secrets WHERE team_id = \\$1 AND path = \\$2").
			WithArgs(secret.TeamID, secret.Path).
			WillReturnRows(secretRows(secret))

		got, err := repo.GetByPath(context.Background(), secret.TeamID, secret.Path)
		require.NoError(t, err)
		assert.Equal(t, secret.ID, got.ID)
		assert.Equal(t, secret.Path, got.Path)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLSecretRepository(db)
		teamID := uuid.Must(uuid.NewV7())

		mock.ExpectQuery("SELECT (.+) FROM secrets WHERE team_id = \\$1 AND path = \\$2").
			WithArgs(teamID, "missing/path").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err = repo.GetByPath(context.Background(), teamID, "missing/path")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}

// TestPostgreSQLSecretRepository_List_FilterPriority verifies that only the
// highest-priority filter is applied: a type filter wins over path prefix and
// active-only.
func TestPostgreSQLSecretRepository_List_FilterPriority(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLSecretRepository(db)
	secret := sampleSecret()
	prefix := "services/"
	secretType := secretsDomain.SecretTypeStatic

	mock.ExpectQuery("SELECT (.+) FROM secrets\\s+WHERE team_id = \\$1 AND secret_type = \\$2").
		WithArgs(secret.TeamID, secretType, 0, 10).
		WillReturnRows(secretRows(secret))

	got, err := repo.List(context.Background(), secret.TeamID, secretsDomain.ListFilter{
		Type:       &secretType,
		PathPrefix: &prefix,
		ActiveOnly: true,
	}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSecretRepository_ListPaths(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLSecretRepository(db)
	teamID := uuid.Must(uuid.NewV7())

	mock.ExpectQuery("SELECT DISTINCT path").
		WithArgs(teamID, "services/").
		WillReturnRows(sqlmock.NewRows([]string{"path"}).
			AddRow("services/app/api-key").
			AddRow("services/app/db"))

	paths, err := repo.ListPaths(context.Background(), teamID, "services/")
	require.NoError(t, err)
	assert.Equal(t, []string{"services/app/api-key", "services/app/db"}, paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLSecretVersionRepository_Destroy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLSecretVersionRepository(db)
	versionID := uuid.Must(uuid.NewV7())

	mock.ExpectExec("UPDATE secret_versions").
		WithArgs(secretsDomain.DestroyedValueSentinel, versionID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Destroy(context.Background(), versionID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
