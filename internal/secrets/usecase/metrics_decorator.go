package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/metrics"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record emits the operation counter and duration histogram for one call.
func (s *secretUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", operation, status)
	s.metrics.RecordDuration(ctx, "secrets", operation, time.Since(start), status)
}

func (s *secretUseCaseWithMetrics) Create(
	ctx context.Context,
	input secretsDomain.CreateSecretInput,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Create(ctx, input)
	s.record(ctx, "secret_create", start, err)
	return secret, err
}

func (s *secretUseCaseWithMetrics) Get(
	ctx context.Context,
	secretID uuid.UUID,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Get(ctx, secretID)
	s.record(ctx, "secret_get", start, err)
	return secret, err
}

func (s *secretUseCaseWithMetrics) GetByPath(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.GetByPath(ctx, teamID, path)
	s.record(ctx, "secret_get_by_path", start, err)
	return secret, err
}

func (s *secretUseCaseWithMetrics) GetMetadata(
	ctx context.Context,
	secretID uuid.UUID,
) (map[string]string, error) {
	start := time.Now()
	metadata, err := s.next.GetMetadata(ctx, secretID)
	s.record(ctx, "secret_get_metadata", start, err)
	return metadata, err
}

func (s *secretUseCaseWithMetrics) GetValue(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.SecretValue, error) {
	start := time.Now()
	value, err := s.next.GetValue(ctx, teamID, path)
	s.record(ctx, "secret_get_value", start, err)
	return value, err
}

func (s *secretUseCaseWithMetrics) GetVersion(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
	versionNumber uint,
) (*secretsDomain.SecretValue, error) {
	start := time.Now()
	value, err := s.next.GetVersion(ctx, teamID, path, versionNumber)
	s.record(ctx, "secret_get_version", start, err)
	return value, err
}

func (s *secretUseCaseWithMetrics) ListVersions(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*secretsDomain.SecretVersion, error) {
	start := time.Now()
	versions, err := s.next.ListVersions(ctx, secretID)
	s.record(ctx, "secret_list_versions", start, err)
	return versions, err
}

func (s *secretUseCaseWithMetrics) Update(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
	input secretsDomain.UpdateSecretInput,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Update(ctx, teamID, path, input)
	s.record(ctx, "secret_update", start, err)
	return secret, err
}

func (s *secretUseCaseWithMetrics) ApplyRetention(ctx context.Context, secretID uuid.UUID) error {
	start := time.Now()
	err := s.next.ApplyRetention(ctx, secretID)
	s.record(ctx, "secret_apply_retention", start, err)
	return err
}

func (s *secretUseCaseWithMetrics) SoftDelete(ctx context.Context, secretID uuid.UUID) error {
	start := time.Now()
	err := s.next.SoftDelete(ctx, secretID)
	s.record(ctx, "secret_soft_delete", start, err)
	return err
}

func (s *secretUseCaseWithMetrics) MarkRotated(ctx context.Context, secretID uuid.UUID) error {
	start := time.Now()
	err := s.next.MarkRotated(ctx, secretID)
	s.record(ctx, "secret_mark_rotated", start, err)
	return err
}

func (s *secretUseCaseWithMetrics) HardDelete(ctx context.Context, secretID uuid.UUID) error {
	start := time.Now()
	err := s.next.HardDelete(ctx, secretID)
	s.record(ctx, "secret_hard_delete", start, err)
	return err
}

func (s *secretUseCaseWithMetrics) List(
	ctx context.Context,
	teamID uuid.UUID,
	filter secretsDomain.ListFilter,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.List(ctx, teamID, filter, offset, limit)
	s.record(ctx, "secret_list", start, err)
	return secrets, err
}

func (s *secretUseCaseWithMetrics) Search(
	ctx context.Context,
	teamID uuid.UUID,
	term string,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.Search(ctx, teamID, term, offset, limit)
	s.record(ctx, "secret_search", start, err)
	return secrets, err
}

func (s *secretUseCaseWithMetrics) ListPaths(
	ctx context.Context,
	teamID uuid.UUID,
	prefix string,
) ([]string, error) {
	start := time.Now()
	paths, err := s.next.ListPaths(ctx, teamID, prefix)
	s.record(ctx, "secret_list_paths", start, err)
	return paths, err
}

func (s *secretUseCaseWithMetrics) GetExpiringSecrets(
	ctx context.Context,
	teamID uuid.UUID,
	hours int,
) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.GetExpiringSecrets(ctx, teamID, hours)
	s.record(ctx, "secret_get_expiring", start, err)
	return secrets, err
}
