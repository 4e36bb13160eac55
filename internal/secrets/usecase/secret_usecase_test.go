package usecase

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// inlineTxManager runs transactional functions directly, without a database.
type inlineTxManager struct{}

func (inlineTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (inlineTxManager) WithNewTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// fakeSecretRepo is an in-memory SecretRepository.
type fakeSecretRepo struct {
	secrets map[uuid.UUID]*secretsDomain.Secret
}

func newFakeSecretRepo() *fakeSecretRepo {
	return &fakeSecretRepo{secrets: make(map[uuid.UUID]*secretsDomain.Secret)}
}

func (f *fakeSecretRepo) Create(_ context.Context, secret *secretsDomain.Secret) error {
	copied := *secret
	f.secrets[secret.ID] = &copied
	return nil
}

func (f *fakeSecretRepo) Update(_ context.Context, secret *secretsDomain.Secret) error {
	if _, ok := f.secrets[secret.ID]; !ok {
		return secretsDomain.ErrSecretNotFound
	}
	copied := *secret
	f.secrets[secret.ID] = &copied
	return nil
}

func (f *fakeSecretRepo) GetByID(_ context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	secret, ok := f.secrets[secretID]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	copied := *secret
	return &copied, nil
}

func (f *fakeSecretRepo) GetByPath(
	_ context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.Secret, error) {
	for _, secret := range f.secrets {
		if secret.TeamID == teamID && secret.Path == path {
			copied := *secret
			return &copied, nil
		}
	}
	return nil, secretsDomain.ErrSecretNotFound
}

func (f *fakeSecretRepo) List(
	_ context.Context,
	teamID uuid.UUID,
	_ secretsDomain.ListFilter,
	_, _ int,
) ([]*secretsDomain.Secret, error) {
	var out []*secretsDomain.Secret
	for _, secret := range f.secrets {
		if secret.TeamID == teamID {
			copied := *secret
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSecretRepo) Search(
	_ context.Context, _ uuid.UUID, _ string, _, _ int,
) ([]*secretsDomain.Secret, error) {
	return nil, nil
}

func (f *fakeSecretRepo) ListPaths(_ context.Context, _ uuid.UUID, _ string) ([]string, error) {
	return nil, nil
}

func (f *fakeSecretRepo) ListExpiring(
	_ context.Context, _ uuid.UUID, _, _ time.Time,
) ([]*secretsDomain.Secret, error) {
	return nil, nil
}

func (f *fakeSecretRepo) HardDelete(_ context.Context, secretID uuid.UUID) error {
	delete(f.secrets, secretID)
	return nil
}

// fakeVersionRepo is an in-memory SecretVersionRepository.
type fakeVersionRepo struct {
	versions map[uuid.UUID]*secretsDomain.SecretVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[uuid.UUID]*secretsDomain.SecretVersion)}
}

func (f *fakeVersionRepo) Create(_ context.Context, version *secretsDomain.SecretVersion) error {
	copied := *version
	f.versions[version.ID] = &copied
	return nil
}

func (f *fakeVersionRepo) GetByNumber(
	_ context.Context,
	secretID uuid.UUID,
	versionNumber uint,
) (*secretsDomain.SecretVersion, error) {
	for _, version := range f.versions {
		if version.SecretID == secretID && version.VersionNumber == versionNumber {
			copied := *version
			return &copied, nil
		}
	}
	return nil, secretsDomain.ErrVersionNotFound
}

func (f *fakeVersionRepo) ListBySecret(
	_ context.Context,
	secretID uuid.UUID,
) ([]*secretsDomain.SecretVersion, error) {
	var out []*secretsDomain.SecretVersion
	for _, version := range f.versions {
		if version.SecretID == secretID {
			copied := *version
			out = append(out, &copied)
		}
	}
	// Descending version order, matching the SQL repository.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].VersionNumber > out[i].VersionNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeVersionRepo) Destroy(_ context.Context, versionID uuid.UUID) error {
	version, ok := f.versions[versionID]
	if !ok {
		return secretsDomain.ErrVersionNotFound
	}
	version.IsDestroyed = true
	version.EncryptedValue = secretsDomain.DestroyedValueSentinel
	return nil
}

// fakeMetadataRepo is an in-memory SecretMetadataRepository.
type fakeMetadataRepo struct {
	metadata map[uuid.UUID]map[string]string
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{metadata: make(map[uuid.UUID]map[string]string)}
}

func (f *fakeMetadataRepo) Replace(
	_ context.Context,
	secretID uuid.UUID,
	metadata map[string]string,
) error {
	copied := make(map[string]string, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	f.metadata[secretID] = copied
	return nil
}

func (f *fakeMetadataRepo) GetBySecret(
	_ context.Context,
	secretID uuid.UUID,
) (map[string]string, error) {
	return f.metadata[secretID], nil
}

type testEnv struct {
	useCase     SecretUseCase
	secretRepo  *fakeSecretRepo
	versionRepo *fakeVersionRepo
	metaRepo    *fakeMetadataRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	masterKey, err := cryptoDomain.NewMasterKey(key)
	require.NoError(t, err)

	crypto, err := cryptoUsecase.NewCryptoUseCase(masterKey)
	require.NoError(t, err)

	env := &testEnv{
		secretRepo:  newFakeSecretRepo(),
		versionRepo: newFakeVersionRepo(),
		metaRepo:    newFakeMetadataRepo(),
	}
	env.useCase = NewSecretUseCase(
		inlineTxManager{},
		env.secretRepo,
		env.versionRepo,
		env.metaRepo,
		crypto,
	)
	return env
}

func staticInput(teamID uuid.UUID) secretsDomain.CreateSecretInput {
	return secretsDomain.CreateSecretInput{
		TeamID:      teamID,
		Path:        "services/app/db",
		Name:        "app database password",
		Type:        secretsDomain.SecretTypeStatic,
		Value:       "s3cr3t-value",
		OwnerUserID: uuid.Must(uuid.NewV7()),
	}
}

func TestSecretUseCase_Create(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	t.Run("Success_StaticSecret", func(t *testing.T) {
		env := newTestEnv(t)

		secret, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)
		assert.Equal(t, uint(1), secret.CurrentVersion)
		assert.True(t, secret.IsActive)

		version, err := env.versionRepo.GetByNumber(ctx, secret.ID, 1)
		require.NoError(t, err)
		assert.NotEqual(t, "s3cr3t-value", version.EncryptedValue)
		assert.Equal(t, cryptoDomain.DefaultKeyID, version.EncryptionKeyID)
	})

	t.Run("Success_ReferenceSecretHasNoVersions", func(t *testing.T) {
		env := newTestEnv(t)
		arn := "arn:aws:secretsmanager:us-east-1:123:secret:x"

		secret, err := env.useCase.Create(ctx, secretsDomain.CreateSecretInput{
			TeamID:       teamID,
			Path:         "external/aws",
			Name:         "aws reference",
			Type:         secretsDomain.SecretTypeReference,
			ReferenceArn: &arn,
			OwnerUserID:  uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(0), secret.CurrentVersion)

		_, err = env.versionRepo.GetByNumber(ctx, secret.ID, 1)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_DuplicatePath", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		_, err = env.useCase.Create(ctx, staticInput(teamID))
		assert.ErrorIs(t, err, secretsDomain.ErrSecretAlreadyExists)
	})

	t.Run("Error_ReferenceWithValue", func(t *testing.T) {
		env := newTestEnv(t)
		arn := "arn:aws:secretsmanager:us-east-1:123:secret:x"

		_, err := env.useCase.Create(ctx, secretsDomain.CreateSecretInput{
			TeamID:       teamID,
			Path:         "external/aws",
			Name:         "aws reference",
			Type:         secretsDomain.SecretTypeReference,
			ReferenceArn: &arn,
			Value:        "should not be here",
			OwnerUserID:  uuid.Must(uuid.NewV7()),
		})
		assert.ErrorIs(t, err, secretsDomain.ErrValueOnReference)
	})

	t.Run("Error_StaticWithoutValue", func(t *testing.T) {
		env := newTestEnv(t)
		input := staticInput(teamID)
		input.Value = ""

		_, err := env.useCase.Create(ctx, input)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Success_MetadataStored", func(t *testing.T) {
		env := newTestEnv(t)
		input := staticInput(teamID)
		input.Metadata = map[string]string{"env": "production"}

		secret, err := env.useCase.Create(ctx, input)
		require.NoError(t, err)

		metadata, err := env.useCase.GetMetadata(ctx, secret.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"env": "production"}, metadata)
	})
}

func TestSecretUseCase_GetValue(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	t.Run("Success_DecryptsCurrentVersion", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		value, err := env.useCase.GetValue(ctx, teamID, "services/app/db")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t-value", value.Value)
		assert.Equal(t, uint(1), value.Version)
	})

	t.Run("Success_UpdatesLastAccessedAt", func(t *testing.T) {
		env := newTestEnv(t)
		created, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)
		require.Nil(t, created.LastAccessedAt)

		_, err = env.useCase.GetValue(ctx, teamID, "services/app/db")
		require.NoError(t, err)

		stored, err := env.secretRepo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastAccessedAt)
	})

	t.Run("Error_ReferenceSecret", func(t *testing.T) {
		env := newTestEnv(t)
		arn := "arn:x"
		_, err := env.useCase.Create(ctx, secretsDomain.CreateSecretInput{
			TeamID:       teamID,
			Path:         "external/aws",
			Name:         "aws reference",
			Type:         secretsDomain.SecretTypeReference,
			ReferenceArn: &arn,
			OwnerUserID:  uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)

		_, err = env.useCase.GetValue(ctx, teamID, "external/aws")
		assert.ErrorIs(t, err, secretsDomain.ErrValueOnReference)
	})

	t.Run("Error_UnknownPath", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.GetValue(ctx, teamID, "does/not/exist")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}

func TestSecretUseCase_GetVersion(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	t.Run("Success_HistoricalVersion", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		_, err = env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
			Value:           "second-value",
			UpdatedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)

		value, err := env.useCase.GetVersion(ctx, teamID, "services/app/db", 1)
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t-value", value.Value)

		value, err = env.useCase.GetVersion(ctx, teamID, "services/app/db", 2)
		require.NoError(t, err)
		assert.Equal(t, "second-value", value.Value)
	})

	t.Run("Error_DestroyedVersion", func(t *testing.T) {
		env := newTestEnv(t)
		created, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		version, err := env.versionRepo.GetByNumber(ctx, created.ID, 1)
		require.NoError(t, err)
		require.NoError(t, env.versionRepo.Destroy(ctx, version.ID))

		_, err = env.useCase.GetVersion(ctx, teamID, "services/app/db", 1)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionDestroyed)
	})

	t.Run("Error_MissingVersion", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		_, err = env.useCase.GetVersion(ctx, teamID, "services/app/db", 9)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})
}

func TestSecretUseCase_Update(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	t.Run("Success_NewVersionBumpsCurrent", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		updated, err := env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
			Value:           "new-value",
			UpdatedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(2), updated.CurrentVersion)

		value, err := env.useCase.GetValue(ctx, teamID, "services/app/db")
		require.NoError(t, err)
		assert.Equal(t, "new-value", value.Value)
	})

	t.Run("Success_FieldsWithoutNewVersion", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		description := "updated description"
		updated, err := env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
			Description:     &description,
			UpdatedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(1), updated.CurrentVersion)
		require.NotNil(t, updated.Description)
		assert.Equal(t, description, *updated.Description)
	})

	t.Run("Success_MetadataFullyReplaced", func(t *testing.T) {
		env := newTestEnv(t)
		input := staticInput(teamID)
		input.Metadata = map[string]string{"env": "staging", "owner": "platform"}
		created, err := env.useCase.Create(ctx, input)
		require.NoError(t, err)

		_, err = env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
			Metadata:        map[string]string{"env": "production"},
			UpdatedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)

		metadata, err := env.useCase.GetMetadata(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"env": "production"}, metadata)
	})

	t.Run("Success_RetentionByMaxVersions", func(t *testing.T) {
		env := newTestEnv(t)
		maxVersions := 2
		input := staticInput(teamID)
		input.MaxVersions = &maxVersions
		created, err := env.useCase.Create(ctx, input)
		require.NoError(t, err)

		userID := uuid.Must(uuid.NewV7())
		for _, value := range []string{"v2", "v3"} {
			_, err = env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
				Value:           value,
				UpdatedByUserID: userID,
			})
			require.NoError(t, err)
		}

		// Three versions with a cap of two: the oldest is destroyed, the
		// current one is untouched.
		v1, err := env.versionRepo.GetByNumber(ctx, created.ID, 1)
		require.NoError(t, err)
		assert.True(t, v1.IsDestroyed)
		assert.Equal(t, secretsDomain.DestroyedValueSentinel, v1.EncryptedValue)

		v2, err := env.versionRepo.GetByNumber(ctx, created.ID, 2)
		require.NoError(t, err)
		assert.False(t, v2.IsDestroyed)

		v3, err := env.versionRepo.GetByNumber(ctx, created.ID, 3)
		require.NoError(t, err)
		assert.False(t, v3.IsDestroyed)
	})
}

func TestSecretUseCase_ApplyRetention_ByAge(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	env := newTestEnv(t)
	retentionDays := 30
	input := staticInput(teamID)
	input.RetentionDays = &retentionDays
	created, err := env.useCase.Create(ctx, input)
	require.NoError(t, err)

	_, err = env.useCase.Update(ctx, teamID, "services/app/db", secretsDomain.UpdateSecretInput{
		Value:           "fresh-value",
		UpdatedByUserID: uuid.Must(uuid.NewV7()),
	})
	require.NoError(t, err)

	// Backdate version 1 beyond the retention window.
	v1, err := env.versionRepo.GetByNumber(ctx, created.ID, 1)
	require.NoError(t, err)
	env.versionRepo.versions[v1.ID].CreatedAt = time.Now().UTC().AddDate(0, 0, -60)

	require.NoError(t, env.useCase.ApplyRetention(ctx, created.ID))

	v1, err = env.versionRepo.GetByNumber(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.True(t, v1.IsDestroyed)

	v2, err := env.versionRepo.GetByNumber(ctx, created.ID, 2)
	require.NoError(t, err)
	assert.False(t, v2.IsDestroyed)
}

func TestSecretUseCase_ApplyRetention_NeverDestroysCurrent(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	env := newTestEnv(t)
	retentionDays := 1
	maxVersions := 1
	input := staticInput(teamID)
	input.RetentionDays = &retentionDays
	input.MaxVersions = &maxVersions
	created, err := env.useCase.Create(ctx, input)
	require.NoError(t, err)

	// Backdate the only (and current) version far beyond the window.
	v1, err := env.versionRepo.GetByNumber(ctx, created.ID, 1)
	require.NoError(t, err)
	env.versionRepo.versions[v1.ID].CreatedAt = time.Now().UTC().AddDate(0, 0, -365)

	require.NoError(t, env.useCase.ApplyRetention(ctx, created.ID))

	v1, err = env.versionRepo.GetByNumber(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, v1.IsDestroyed)
}

func TestSecretUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.Must(uuid.NewV7())

	t.Run("Success_SoftDeleteKeepsRow", func(t *testing.T) {
		env := newTestEnv(t)
		created, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		require.NoError(t, env.useCase.SoftDelete(ctx, created.ID))

		stored, err := env.useCase.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("Success_HardDeleteRemovesRow", func(t *testing.T) {
		env := newTestEnv(t)
		created, err := env.useCase.Create(ctx, staticInput(teamID))
		require.NoError(t, err)

		require.NoError(t, env.useCase.HardDelete(ctx, created.ID))

		_, err = env.useCase.Get(ctx, created.ID)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})

	t.Run("Error_HardDeleteUnknownSecret", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.useCase.HardDelete(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}
