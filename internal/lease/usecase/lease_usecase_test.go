package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	leaseDomain "github.com/allisson/vault/internal/lease/domain"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// fakeLeaseRepo is an in-memory LeaseRepository.
type fakeLeaseRepo struct {
	leases map[string]*leaseDomain.DynamicLease
}

func newFakeLeaseRepo() *fakeLeaseRepo {
	return &fakeLeaseRepo{leases: make(map[string]*leaseDomain.DynamicLease)}
}

func (f *fakeLeaseRepo) Create(_ context.Context, lease *leaseDomain.DynamicLease) error {
	copied := *lease
	f.leases[lease.ID] = &copied
	return nil
}

func (f *fakeLeaseRepo) Update(_ context.Context, lease *leaseDomain.DynamicLease) error {
	if _, ok := f.leases[lease.ID]; !ok {
		return leaseDomain.ErrLeaseNotFound
	}
	copied := *lease
	f.leases[lease.ID] = &copied
	return nil
}

func (f *fakeLeaseRepo) GetByID(_ context.Context, leaseID string) (*leaseDomain.DynamicLease, error) {
	lease, ok := f.leases[leaseID]
	if !ok {
		return nil, leaseDomain.ErrLeaseNotFound
	}
	copied := *lease
	return &copied, nil
}

func (f *fakeLeaseRepo) ListBySecret(
	_ context.Context,
	secretID uuid.UUID,
	_, _ int,
) ([]*leaseDomain.DynamicLease, error) {
	var out []*leaseDomain.DynamicLease
	for _, lease := range f.leases {
		if lease.SecretID == secretID {
			copied := *lease
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeLeaseRepo) ListActiveBySecret(
	_ context.Context,
	secretID uuid.UUID,
) ([]*leaseDomain.DynamicLease, error) {
	var out []*leaseDomain.DynamicLease
	for _, lease := range f.leases {
		if lease.SecretID == secretID && lease.Status == leaseDomain.LeaseStatusActive {
			copied := *lease
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeLeaseRepo) ListExpired(_ context.Context, now time.Time) ([]*leaseDomain.DynamicLease, error) {
	var out []*leaseDomain.DynamicLease
	for _, lease := range f.leases {
		if lease.Status == leaseDomain.LeaseStatusActive && lease.ExpiresAt.Before(now) {
			copied := *lease
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeSecretSource serves dynamic secrets and their metadata.
type fakeSecretSource struct {
	secrets  map[uuid.UUID]*secretsDomain.Secret
	metadata map[uuid.UUID]map[string]string
}

func newFakeSecretSource() *fakeSecretSource {
	return &fakeSecretSource{
		secrets:  make(map[uuid.UUID]*secretsDomain.Secret),
		metadata: make(map[uuid.UUID]map[string]string),
	}
}

func (f *fakeSecretSource) add(
	teamID uuid.UUID,
	path string,
	secretType secretsDomain.SecretType,
	metadata map[string]string,
) *secretsDomain.Secret {
	secret := &secretsDomain.Secret{
		ID:       uuid.Must(uuid.NewV7()),
		TeamID:   teamID,
		Path:     path,
		Name:     strings.TrimPrefix(path, "/"),
		Type:     secretType,
		IsActive: true,
	}
	f.secrets[secret.ID] = secret
	f.metadata[secret.ID] = metadata
	return secret
}

func (f *fakeSecretSource) Get(_ context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	secret, ok := f.secrets[secretID]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return secret, nil
}

func (f *fakeSecretSource) GetByPath(
	_ context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.Secret, error) {
	for _, secret := range f.secrets {
		if secret.TeamID == teamID && secret.Path == path {
			return secret, nil
		}
	}
	return nil, secretsDomain.ErrSecretNotFound
}

func (f *fakeSecretSource) GetMetadata(
	_ context.Context,
	secretID uuid.UUID,
) (map[string]string, error) {
	metadata, ok := f.metadata[secretID]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return metadata, nil
}

// fakeProvisioner records backend operations and can simulate drop failures.
type fakeProvisioner struct {
	created []string
	dropped []string
	dropErr error
}

func (f *fakeProvisioner) CreateUser(
	_ context.Context,
	_ leaseDomain.BackendConfig,
	username, _ string,
) error {
	f.created = append(f.created, username)
	return nil
}

func (f *fakeProvisioner) DropUser(
	_ context.Context,
	_ leaseDomain.BackendConfig,
	username string,
) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, username)
	return nil
}

// capturingAudit records audit entries for assertions.
type capturingAudit struct {
	records []auditDomain.Record
}

func (c *capturingAudit) Record(_ context.Context, record auditDomain.Record) {
	c.records = append(c.records, record)
}

func (c *capturingAudit) Query(
	_ context.Context, _ uuid.UUID, _ auditDomain.QueryFilter, _, _ int,
) ([]*auditDomain.AuditEntry, error) {
	return nil, nil
}

func (c *capturingAudit) Purge(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

type leaseEnv struct {
	useCase     LeaseUseCase
	leaseRepo   *fakeLeaseRepo
	secrets     *fakeSecretSource
	provisioner *fakeProvisioner
	audit       *capturingAudit
	crypto      cryptoUsecase.CryptoUseCase
}

func validBackendMetadata() map[string]string {
	return map[string]string{
		"backendType":   leaseDomain.BackendPostgreSQL,
		"host":          "db.internal",
		"port":          "5432",
		"database":      "appdb",
		"adminUser":     "admin",
		"adminPassword": "admin-pass",
	}
}

func newLeaseEnv(t *testing.T, config Config) *leaseEnv {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	masterKey, err := cryptoDomain.NewMasterKey(key)
	require.NoError(t, err)
	crypto, err := cryptoUsecase.NewCryptoUseCase(masterKey)
	require.NoError(t, err)

	env := &leaseEnv{
		leaseRepo:   newFakeLeaseRepo(),
		secrets:     newFakeSecretSource(),
		provisioner: &fakeProvisioner{},
		audit:       &capturingAudit{},
		crypto:      crypto,
	}
	env.useCase = NewLeaseUseCase(
		config,
		env.leaseRepo,
		env.secrets,
		crypto,
		env.provisioner,
		env.audit,
		slog.Default(),
	)
	return env
}

func TestLeaseUseCaseCreateLease(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newLeaseEnv(t, Config{ExecuteSQL: true, UsernamePrefix: "v_", PasswordLength: 24})
		teamID := uuid.Must(uuid.NewV7())
		secret := env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

		result, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			TTLSeconds:        600,
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)

		lease := result.Lease
		assert.True(t, strings.HasPrefix(lease.ID, "lease-"))
		assert.Equal(t, leaseDomain.LeaseStatusActive, lease.Status)
		assert.Equal(t, secret.ID, lease.SecretID)
		assert.Equal(t, 600, lease.TTLSeconds)
		assert.WithinDuration(t, time.Now().UTC().Add(600*time.Second), lease.ExpiresAt, time.Minute)

		credentials := result.Credentials
		assert.True(t, strings.HasPrefix(credentials.Username, "v_"))
		assert.Len(t, credentials.Password, 24)
		assert.Equal(t, "db.internal", credentials.Host)

		// Unencrypted lease metadata must never carry the password.
		assert.NotContains(t, lease.Metadata, credentials.Password)
		var metadata map[string]string
		require.NoError(t, json.Unmarshal([]byte(lease.Metadata), &metadata))
		assert.Equal(t, credentials.Username, metadata["username"])
		assert.NotContains(t, metadata, "password")

		// The envelope holds the full credential map, sealed under the
		// dynamic-credentials purpose key.
		decrypted, err := env.crypto.DecryptWithPurpose(lease.EncryptedCredentials, cryptoDomain.PurposeDynamicCredentials)
		require.NoError(t, err)
		var sealed leaseDomain.Credentials
		require.NoError(t, json.Unmarshal(decrypted, &sealed))
		assert.Equal(t, credentials.Password, sealed.Password)

		// Keys of other purposes must not open the envelope.
		_, err = env.crypto.Decrypt(lease.EncryptedCredentials)
		assert.Error(t, err)

		require.Len(t, env.provisioner.created, 1)
		assert.Equal(t, credentials.Username, env.provisioner.created[0])

		// Issuing a lease is audited exactly once.
		require.Len(t, env.audit.records, 1)
		assert.Equal(t, "lease_create", env.audit.records[0].Operation)
		assert.True(t, env.audit.records[0].Success)
	})

	t.Run("Success_DefaultTTL", func(t *testing.T) {
		env := newLeaseEnv(t, Config{DefaultTTLSeconds: 120})
		teamID := uuid.Must(uuid.NewV7())
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

		result, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)
		assert.Equal(t, 120, result.Lease.TTLSeconds)
	})

	t.Run("Success_SkipsProvisioningWhenDisabled", func(t *testing.T) {
		env := newLeaseEnv(t, Config{ExecuteSQL: false})
		teamID := uuid.Must(uuid.NewV7())
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

		_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		require.NoError(t, err)
		assert.Empty(t, env.provisioner.created)
	})

	t.Run("Error_NotDynamicSecret", func(t *testing.T) {
		env := newLeaseEnv(t, Config{})
		teamID := uuid.Must(uuid.NewV7())
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeStatic, validBackendMetadata())

		_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		assert.ErrorIs(t, err, leaseDomain.ErrNotDynamicSecret)
	})

	t.Run("Error_MissingMetadataKey", func(t *testing.T) {
		env := newLeaseEnv(t, Config{})
		teamID := uuid.Must(uuid.NewV7())
		metadata := validBackendMetadata()
		delete(metadata, "adminPassword")
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, metadata)

		_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_UnsupportedBackend", func(t *testing.T) {
		env := newLeaseEnv(t, Config{})
		teamID := uuid.Must(uuid.NewV7())
		metadata := validBackendMetadata()
		metadata["backendType"] = "oracle"
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, metadata)

		_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		assert.ErrorIs(t, err, leaseDomain.ErrUnsupportedBackend)
	})

	t.Run("Error_TTLExceedsMaximum", func(t *testing.T) {
		env := newLeaseEnv(t, Config{MaxTTLSeconds: 100})
		teamID := uuid.Must(uuid.NewV7())
		env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

		_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
			TeamID:            teamID,
			Path:              "/services/app/db",
			TTLSeconds:        101,
			RequestedByUserID: uuid.Must(uuid.NewV7()),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestLeaseUseCaseRevokeLease(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env, lease := createActiveLease(t)
		revokedBy := uuid.Must(uuid.NewV7())

		revoked, err := env.useCase.RevokeLease(context.Background(), lease.ID, revokedBy)
		require.NoError(t, err)

		assert.Equal(t, leaseDomain.LeaseStatusRevoked, revoked.Status)
		assert.NotNil(t, revoked.RevokedAt)
		assert.Equal(t, revokedBy, *revoked.RevokedByUserID)
		assert.Len(t, env.provisioner.dropped, 1)

		// Exactly one revoke audit entry, and it carries no team id.
		require.Len(t, env.audit.records, 2)
		last := env.audit.records[len(env.audit.records)-1]
		assert.Equal(t, "lease_revoke", last.Operation)
		assert.True(t, last.Success)
		assert.Nil(t, last.TeamID)
	})

	t.Run("Error_NotActive", func(t *testing.T) {
		env, lease := createActiveLease(t)
		revokedBy := uuid.Must(uuid.NewV7())

		_, err := env.useCase.RevokeLease(context.Background(), lease.ID, revokedBy)
		require.NoError(t, err)
		_, err = env.useCase.RevokeLease(context.Background(), lease.ID, revokedBy)
		assert.ErrorIs(t, err, leaseDomain.ErrLeaseNotActive)
	})

	t.Run("Success_DropFailureIsBestEffort", func(t *testing.T) {
		env, lease := createActiveLease(t)
		env.provisioner.dropErr = apperrors.New("backend unreachable")

		revoked, err := env.useCase.RevokeLease(context.Background(), lease.ID, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)
		assert.Equal(t, leaseDomain.LeaseStatusRevoked, revoked.Status)
	})

	t.Run("Error_UnknownLease", func(t *testing.T) {
		env := newLeaseEnv(t, Config{})

		_, err := env.useCase.RevokeLease(context.Background(), "lease-missing", uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLeaseUseCaseRevokeAllLeases(t *testing.T) {
	t.Run("Success_SecondCallReturnsZero", func(t *testing.T) {
		env := newLeaseEnv(t, Config{ExecuteSQL: true, UsernamePrefix: "v_"})
		teamID := uuid.Must(uuid.NewV7())
		secret := env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

		for range 2 {
			_, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
				TeamID:            teamID,
				Path:              "/services/app/db",
				TTLSeconds:        600,
				RequestedByUserID: uuid.Must(uuid.NewV7()),
			})
			require.NoError(t, err)
		}

		revokedBy := uuid.Must(uuid.NewV7())
		revoked, err := env.useCase.RevokeAllLeases(context.Background(), secret.ID, revokedBy)
		require.NoError(t, err)
		assert.Equal(t, 2, revoked)

		revoked, err = env.useCase.RevokeAllLeases(context.Background(), secret.ID, revokedBy)
		require.NoError(t, err)
		assert.Zero(t, revoked)
	})
}

func TestLeaseUseCaseExpireLeases(t *testing.T) {
	t.Run("Success_FlipsOverdueLeases", func(t *testing.T) {
		env, lease := createActiveLease(t)

		stored := env.leaseRepo.leases[lease.ID]
		stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)

		expired, err := env.useCase.ExpireLeases(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, expired)
		assert.Equal(t, leaseDomain.LeaseStatusExpired, env.leaseRepo.leases[lease.ID].Status)
		assert.Nil(t, env.leaseRepo.leases[lease.ID].RevokedAt)
	})

	t.Run("Success_LeavesCurrentLeasesAlone", func(t *testing.T) {
		env, lease := createActiveLease(t)

		expired, err := env.useCase.ExpireLeases(context.Background())
		require.NoError(t, err)
		assert.Zero(t, expired)
		assert.Equal(t, leaseDomain.LeaseStatusActive, env.leaseRepo.leases[lease.ID].Status)
	})
}

func TestLeaseUseCaseStart(t *testing.T) {
	t.Run("Success_StopsOnContextCancel", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		env := newLeaseEnv(t, Config{SweepInterval: 10 * time.Millisecond})
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- env.useCase.Start(ctx)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop after cancellation")
		}
	})
}

func createActiveLease(t *testing.T) (*leaseEnv, *leaseDomain.DynamicLease) {
	t.Helper()

	env := newLeaseEnv(t, Config{ExecuteSQL: true, UsernamePrefix: "v_"})
	teamID := uuid.Must(uuid.NewV7())
	env.secrets.add(teamID, "/services/app/db", secretsDomain.SecretTypeDynamic, validBackendMetadata())

	result, err := env.useCase.CreateLease(context.Background(), leaseDomain.CreateLeaseInput{
		TeamID:            teamID,
		Path:              "/services/app/db",
		TTLSeconds:        600,
		RequestedByUserID: uuid.Must(uuid.NewV7()),
	})
	require.NoError(t, err)
	return env, result.Lease
}
