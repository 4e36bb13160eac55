package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// fakeRotationPolicyRepo is an in-memory RotationPolicyRepository.
type fakeRotationPolicyRepo struct {
	policies map[uuid.UUID]*rotationDomain.RotationPolicy
}

func newFakeRotationPolicyRepo() *fakeRotationPolicyRepo {
	return &fakeRotationPolicyRepo{policies: make(map[uuid.UUID]*rotationDomain.RotationPolicy)}
}

func (f *fakeRotationPolicyRepo) Create(_ context.Context, policy *rotationDomain.RotationPolicy) error {
	copied := *policy
	f.policies[policy.ID] = &copied
	return nil
}

func (f *fakeRotationPolicyRepo) Update(_ context.Context, policy *rotationDomain.RotationPolicy) error {
	if _, ok := f.policies[policy.ID]; !ok {
		return rotationDomain.ErrRotationPolicyNotFound
	}
	copied := *policy
	f.policies[policy.ID] = &copied
	return nil
}

func (f *fakeRotationPolicyRepo) GetByID(_ context.Context, policyID uuid.UUID) (*rotationDomain.RotationPolicy, error) {
	policy, ok := f.policies[policyID]
	if !ok {
		return nil, rotationDomain.ErrRotationPolicyNotFound
	}
	copied := *policy
	return &copied, nil
}

func (f *fakeRotationPolicyRepo) GetBySecretID(_ context.Context, secretID uuid.UUID) (*rotationDomain.RotationPolicy, error) {
	for _, policy := range f.policies {
		if policy.SecretID == secretID {
			copied := *policy
			return &copied, nil
		}
	}
	return nil, rotationDomain.ErrRotationPolicyNotFound
}

func (f *fakeRotationPolicyRepo) ListDue(_ context.Context, now time.Time) ([]*rotationDomain.RotationPolicy, error) {
	var due []*rotationDomain.RotationPolicy
	for _, policy := range f.policies {
		if policy.IsActive && policy.NextRotationAt.Before(now) {
			copied := *policy
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (f *fakeRotationPolicyRepo) Delete(_ context.Context, policyID uuid.UUID) error {
	delete(f.policies, policyID)
	return nil
}

// fakeRotationHistoryRepo is an in-memory RotationHistoryRepository.
type fakeRotationHistoryRepo struct {
	entries []*rotationDomain.RotationHistory
}

func (f *fakeRotationHistoryRepo) Create(_ context.Context, history *rotationDomain.RotationHistory) error {
	copied := *history
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeRotationHistoryRepo) ListBySecret(
	_ context.Context,
	secretID uuid.UUID,
	_, _ int,
) ([]*rotationDomain.RotationHistory, error) {
	var out []*rotationDomain.RotationHistory
	for _, entry := range f.entries {
		if entry.SecretID == secretID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// fakeSecretManager simulates the secrets use case: updates bump the current
// version and remember the last written value.
type fakeSecretManager struct {
	secrets   map[uuid.UUID]*secretsDomain.Secret
	lastValue string
}

func newFakeSecretManager() *fakeSecretManager {
	return &fakeSecretManager{secrets: make(map[uuid.UUID]*secretsDomain.Secret)}
}

func (f *fakeSecretManager) add(teamID uuid.UUID, path string) *secretsDomain.Secret {
	secret := &secretsDomain.Secret{
		ID:             uuid.Must(uuid.NewV7()),
		TeamID:         teamID,
		Path:           path,
		Name:           path,
		Type:           secretsDomain.SecretTypeStatic,
		CurrentVersion: 1,
		IsActive:       true,
	}
	f.secrets[secret.ID] = secret
	return secret
}

func (f *fakeSecretManager) Get(_ context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	secret, ok := f.secrets[secretID]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	copied := *secret
	return &copied, nil
}

func (f *fakeSecretManager) Update(
	_ context.Context,
	teamID uuid.UUID,
	path string,
	input secretsDomain.UpdateSecretInput,
) (*secretsDomain.Secret, error) {
	for _, secret := range f.secrets {
		if secret.TeamID == teamID && secret.Path == path {
			secret.CurrentVersion++
			f.lastValue = input.Value
			copied := *secret
			return &copied, nil
		}
	}
	return nil, secretsDomain.ErrSecretNotFound
}

func (f *fakeSecretManager) MarkRotated(_ context.Context, secretID uuid.UUID) error {
	secret, ok := f.secrets[secretID]
	if !ok {
		return secretsDomain.ErrSecretNotFound
	}
	now := time.Now().UTC()
	secret.LastRotatedAt = &now
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

type rotationEnv struct {
	useCase    RotationUseCase
	policyRepo *fakeRotationPolicyRepo
	history    *fakeRotationHistoryRepo
	secrets    *fakeSecretManager
	audit      *capturingAudit
}

func newRotationEnv(t *testing.T, config Config) *rotationEnv {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	masterKey, err := cryptoDomain.NewMasterKey(key)
	require.NoError(t, err)
	crypto, err := cryptoUsecase.NewCryptoUseCase(masterKey)
	require.NoError(t, err)

	env := &rotationEnv{
		policyRepo: newFakeRotationPolicyRepo(),
		history:    &fakeRotationHistoryRepo{},
		secrets:    newFakeSecretManager(),
		audit:      &capturingAudit{},
	}
	env.useCase = NewRotationUseCase(
		config,
		env.policyRepo,
		env.history,
		env.secrets,
		crypto,
		env.audit,
		slog.Default(),
	)
	return env
}

func intPtr(i int) *int { return &i }
func strPtr(s string) *string { return &s }

func TestRotationUseCaseCreatePolicy(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")

		policy, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyRandomGenerate,
			IntervalHours: 24,
		})
		require.NoError(t, err)
		assert.True(t, policy.IsActive)
		assert.Zero(t, policy.FailureCount)
		assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), policy.NextRotationAt, time.Minute)
	})

	t.Run("Error_DuplicatePolicy", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")
		input := rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyRandomGenerate,
			IntervalHours: 24,
		}

		_, err := env.useCase.CreatePolicy(context.Background(), input)
		require.NoError(t, err)
		_, err = env.useCase.CreatePolicy(context.Background(), input)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Error_UnknownStrategy", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")

		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      "ROLL_DICE",
			IntervalHours: 24,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_ExternalAPIWithoutURL", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")

		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyExternalAPI,
			IntervalHours: 24,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_UnknownSecret", func(t *testing.T) {
		env := newRotationEnv(t, Config{})

		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      uuid.Must(uuid.NewV7()),
			Strategy:      rotationDomain.StrategyRandomGenerate,
			IntervalHours: 24,
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestRotationUseCaseRotateSecret(t *testing.T) {
	t.Run("Success_RandomGenerate", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")
		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyRandomGenerate,
			IntervalHours: 24,
			RandomLength:  intPtr(20),
		})
		require.NoError(t, err)

		history, err := env.useCase.RotateSecret(context.Background(), secret.ID, nil)
		require.NoError(t, err)

		assert.True(t, history.Success)
		assert.Equal(t, uint(1), history.PreviousVersion)
		require.NotNil(t, history.NewVersion)
		assert.Equal(t, uint(2), *history.NewVersion)
		assert.Nil(t, history.TriggeredByUserID)
		assert.Len(t, env.secrets.lastValue, 20)

		rotated, err := env.secrets.Get(context.Background(), secret.ID)
		require.NoError(t, err)
		assert.NotNil(t, rotated.LastRotatedAt)

		policy, err := env.useCase.GetPolicyBySecret(context.Background(), secret.ID)
		require.NoError(t, err)
		assert.NotNil(t, policy.LastRotatedAt)
		assert.Zero(t, policy.FailureCount)

		require.Len(t, env.audit.records, 1)
		assert.True(t, env.audit.records[0].Success)
		assert.Equal(t, "rotation_rotate", env.audit.records[0].Operation)
	})

	t.Run("Error_FailureBudgetDeactivatesPolicy", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")
		created, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyCustomScript,
			IntervalHours: 12,
			MaxFailures:   intPtr(5),
		})
		require.NoError(t, err)

		stored := env.policyRepo.policies[created.ID]
		stored.FailureCount = 4
		before := stored.NextRotationAt

		history, err := env.useCase.RotateSecret(context.Background(), secret.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotImplemented)

		require.NotNil(t, history)
		assert.False(t, history.Success)
		assert.Nil(t, history.NewVersion)
		require.NotNil(t, history.ErrorMessage)
		assert.Contains(t, *history.ErrorMessage, "not yet implemented")

		updated := env.policyRepo.policies[created.ID]
		assert.Equal(t, 5, updated.FailureCount)
		assert.False(t, updated.IsActive)
		assert.True(t, updated.NextRotationAt.After(before))

		require.Len(t, env.audit.records, 1)
		assert.False(t, env.audit.records[0].Success)
	})

	t.Run("Success_ExternalAPI", func(t *testing.T) {
		var gotHeader string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-Api-Key")
			_, _ = w.Write([]byte("fresh-value-from-api"))
		}))
		defer server.Close()

		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/api-key")
		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:           secret.ID,
			Strategy:           rotationDomain.StrategyExternalAPI,
			IntervalHours:      24,
			ExternalAPIURL:     strPtr(server.URL),
			ExternalAPIHeaders: strPtr(`{"X-Api-Key": "token-123"}`),
		})
		require.NoError(t, err)

		history, err := env.useCase.RotateSecret(context.Background(), secret.ID, nil)
		require.NoError(t, err)
		assert.True(t, history.Success)
		assert.Equal(t, "token-123", gotHeader)
		assert.Equal(t, "fresh-value-from-api", env.secrets.lastValue)
	})

	t.Run("Error_ExternalAPIEmptyBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/api-key")
		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:       secret.ID,
			Strategy:       rotationDomain.StrategyExternalAPI,
			IntervalHours:  24,
			ExternalAPIURL: strPtr(server.URL),
		})
		require.NoError(t, err)

		_, err = env.useCase.RotateSecret(context.Background(), secret.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrRotationFailed)
	})

	t.Run("Error_ExternalAPINon2xxStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer server.Close()

		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/api-key")
		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:       secret.ID,
			Strategy:       rotationDomain.StrategyExternalAPI,
			IntervalHours:  24,
			ExternalAPIURL: strPtr(server.URL),
		})
		require.NoError(t, err)

		_, err = env.useCase.RotateSecret(context.Background(), secret.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrRotationFailed)
	})
}

func TestRotationUseCaseRotateDue(t *testing.T) {
	t.Run("Success_FailureOnOnePolicyDoesNotStopOthers", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		teamID := uuid.Must(uuid.NewV7())

		broken := env.secrets.add(teamID, "/services/app/broken")
		healthy := env.secrets.add(teamID, "/services/app/healthy")

		for _, input := range []rotationDomain.CreateRotationPolicyInput{
			{SecretID: broken.ID, Strategy: rotationDomain.StrategyCustomScript, IntervalHours: 1},
			{SecretID: healthy.ID, Strategy: rotationDomain.StrategyRandomGenerate, IntervalHours: 1},
		} {
			created, err := env.useCase.CreatePolicy(context.Background(), input)
			require.NoError(t, err)
			env.policyRepo.policies[created.ID].NextRotationAt = time.Now().UTC().Add(-time.Minute)
		}

		err := env.useCase.RotateDue(context.Background())
		require.NoError(t, err)

		brokenHistory, err := env.useCase.ListHistory(context.Background(), broken.ID, 0, 10)
		require.NoError(t, err)
		require.Len(t, brokenHistory, 1)
		assert.False(t, brokenHistory[0].Success)

		healthyHistory, err := env.useCase.ListHistory(context.Background(), healthy.ID, 0, 10)
		require.NoError(t, err)
		require.Len(t, healthyHistory, 1)
		assert.True(t, healthyHistory[0].Success)
	})

	t.Run("Success_SkipsPoliciesNotYetDue", func(t *testing.T) {
		env := newRotationEnv(t, Config{})
		secret := env.secrets.add(uuid.Must(uuid.NewV7()), "/services/app/db")
		_, err := env.useCase.CreatePolicy(context.Background(), rotationDomain.CreateRotationPolicyInput{
			SecretID:      secret.ID,
			Strategy:      rotationDomain.StrategyRandomGenerate,
			IntervalHours: 24,
		})
		require.NoError(t, err)

		err = env.useCase.RotateDue(context.Background())
		require.NoError(t, err)
		assert.Empty(t, env.history.entries)
	})
}

func TestRotationUseCaseStart(t *testing.T) {
	t.Run("Success_StopsOnContextCancel", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		env := newRotationEnv(t, Config{TickInterval: 10 * time.Millisecond})
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
			t.Fatal("scheduler did not stop after cancellation")
		}
	})
}
