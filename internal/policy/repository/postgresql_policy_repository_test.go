package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	policyDomain "github.com/allisson/vault/internal/policy/domain"
)

func samplePolicy() *policyDomain.AccessPolicy {
	now := time.Now().UTC()
	return &policyDomain.AccessPolicy{
		ID:              uuid.Must(uuid.NewV7()),
		TeamID:          uuid.Must(uuid.NewV7()),
		Name:            "readers",
		PathPattern:     "/services/*",
		Effect:          policyDomain.EffectAllow,
		Permissions:     []string{"read", "list"},
		IsActive:        true,
		CreatedByUserID: uuid.Must(uuid.NewV7()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPostgreSQLPolicyRepository_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLPolicyRepository(db)
		policy := samplePolicy()

		mock.ExpectExec("INSERT INTO access_policies").
			WithArgs(
				policy.ID, policy.TeamID, policy.Name, policy.Description,
				policy.PathPattern, policy.Effect, pq.Array(policy.Permissions),
				policy.IsActive, policy.CreatedByUserID, policy.CreatedAt, policy.UpdatedAt,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Create(context.Background(), policy)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_DuplicateName", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLPolicyRepository(db)
		policy := samplePolicy()

		mock.ExpectExec("INSERT INTO access_policies").
			WillReturnError(errors.New(
				`pq: duplicate key value violates unique constraint "access_policies_team_id_name_key"`,
			))

		err = repo.Create(context.Background(), policy)
		assert.ErrorIs(t, err, policyDomain.ErrPolicyAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLPolicyRepository_Update(t *testing.T) {
	t.Run("Error_DuplicateName", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLPolicyRepository(db)
		policy := samplePolicy()

		mock.ExpectExec("UPDATE access_policies").
			WillReturnError(errors.New(
				`pq: duplicate key value violates unique constraint "access_policies_team_id_name_key"`,
			))

		err = repo.Update(context.Background(), policy)
		assert.ErrorIs(t, err, policyDomain.ErrPolicyAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
