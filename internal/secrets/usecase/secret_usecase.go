package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// secretUseCase implements the SecretUseCase interface.
type secretUseCase struct {
	txManager    database.TxManager
	secretRepo   SecretRepository
	versionRepo  SecretVersionRepository
	metadataRepo SecretMetadataRepository
	crypto       cryptoUsecase.CryptoUseCase
}

// Create stores a new secret, rejecting duplicates on (team, path).
func (s *secretUseCase) Create(
	ctx context.Context,
	input secretsDomain.CreateSecretInput,
) (*secretsDomain.Secret, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.secretRepo.GetByPath(ctx, input.TeamID, input.Path)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, secretsDomain.ErrSecretAlreadyExists
	}

	now := time.Now().UTC()
	secret := &secretsDomain.Secret{
		ID:            uuid.Must(uuid.NewV7()),
		TeamID:        input.TeamID,
		Path:          normalizePath(input.Path),
		Name:          input.Name,
		Description:   input.Description,
		Type:          input.Type,
		MaxVersions:   input.MaxVersions,
		RetentionDays: input.RetentionDays,
		ExpiresAt:     input.ExpiresAt,
		OwnerUserID:   input.OwnerUserID,
		ReferenceArn:  input.ReferenceArn,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if input.Type != secretsDomain.SecretTypeReference {
		secret.CurrentVersion = 1
	}

	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.secretRepo.Create(txCtx, secret); err != nil {
			return err
		}

		if input.Type != secretsDomain.SecretTypeReference {
			version, err := s.newVersion(secret.ID, 1, input.Value, nil, input.OwnerUserID, now)
			if err != nil {
				return err
			}
			if err := s.versionRepo.Create(txCtx, version); err != nil {
				return err
			}
		}

		if len(input.Metadata) > 0 {
			if err := s.metadataRepo.Replace(txCtx, secret.ID, input.Metadata); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return secret, nil
}

// Get retrieves secret metadata by id.
func (s *secretUseCase) Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	return s.secretRepo.GetByID(ctx, secretID)
}

// GetByPath retrieves secret metadata by team and path.
func (s *secretUseCase) GetByPath(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.Secret, error) {
	return s.secretRepo.GetByPath(ctx, teamID, normalizePath(path))
}

// GetMetadata retrieves the metadata set of a secret.
func (s *secretUseCase) GetMetadata(
	ctx context.Context,
	secretID uuid.UUID,
) (map[string]string, error) {
	if _, err := s.secretRepo.GetByID(ctx, secretID); err != nil {
		return nil, err
	}
	return s.metadataRepo.GetBySecret(ctx, secretID)
}

// GetValue decrypts the current version of a secret.
func (s *secretUseCase) GetValue(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
) (*secretsDomain.SecretValue, error) {
	secret, err := s.secretRepo.GetByPath(ctx, teamID, normalizePath(path))
	if err != nil {
		return nil, err
	}
	if secret.Type == secretsDomain.SecretTypeReference {
		return nil, secretsDomain.ErrValueOnReference
	}

	version, err := s.versionRepo.GetByNumber(ctx, secret.ID, secret.CurrentVersion)
	if err != nil {
		return nil, err
	}

	return s.decryptVersion(ctx, secret, version)
}

// GetVersion decrypts a historical version of a secret.
func (s *secretUseCase) GetVersion(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
	versionNumber uint,
) (*secretsDomain.SecretValue, error) {
	secret, err := s.secretRepo.GetByPath(ctx, teamID, normalizePath(path))
	if err != nil {
		return nil, err
	}
	if secret.Type == secretsDomain.SecretTypeReference {
		return nil, secretsDomain.ErrValueOnReference
	}

	version, err := s.versionRepo.GetByNumber(ctx, secret.ID, versionNumber)
	if err != nil {
		return nil, err
	}
	if version.IsDestroyed {
		return nil, secretsDomain.ErrVersionDestroyed
	}

	return s.decryptVersion(ctx, secret, version)
}

// ListVersions returns all version rows of a secret, newest first.
func (s *secretUseCase) ListVersions(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*secretsDomain.SecretVersion, error) {
	if _, err := s.secretRepo.GetByID(ctx, secretID); err != nil {
		return nil, err
	}
	return s.versionRepo.ListBySecret(ctx, secretID)
}

// Update applies partial changes to a secret. A non-empty value creates a new
// version, promotes it to current and runs retention inside the same
// transaction.
func (s *secretUseCase) Update(
	ctx context.Context,
	teamID uuid.UUID,
	path string,
	input secretsDomain.UpdateSecretInput,
) (*secretsDomain.Secret, error) {
	secret, err := s.secretRepo.GetByPath(ctx, teamID, normalizePath(path))
	if err != nil {
		return nil, err
	}
	if input.Value != "" && secret.Type == secretsDomain.SecretTypeReference {
		return nil, secretsDomain.ErrValueOnReference
	}

	now := time.Now().UTC()

	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if input.Value != "" {
			newNumber := secret.CurrentVersion + 1
			version, err := s.newVersion(
				secret.ID, newNumber, input.Value, input.ChangeDescription,
				input.UpdatedByUserID, now,
			)
			if err != nil {
				return err
			}
			if err := s.versionRepo.Create(txCtx, version); err != nil {
				return err
			}
			secret.CurrentVersion = newNumber
		}

		if input.Description != nil {
			secret.Description = input.Description
		}
		if input.MaxVersions != nil {
			secret.MaxVersions = input.MaxVersions
		}
		if input.RetentionDays != nil {
			secret.RetentionDays = input.RetentionDays
		}
		if input.ExpiresAt != nil {
			secret.ExpiresAt = input.ExpiresAt
		}
		secret.UpdatedAt = now

		if err := s.secretRepo.Update(txCtx, secret); err != nil {
			return err
		}

		if input.Metadata != nil {
			if err := s.metadataRepo.Replace(txCtx, secret.ID, input.Metadata); err != nil {
				return err
			}
		}

		if input.Value != "" {
			return s.applyRetention(txCtx, secret)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return secret, nil
}

// ApplyRetention runs the retention rules for a secret on demand.
func (s *secretUseCase) ApplyRetention(ctx context.Context, secretID uuid.UUID) error {
	secret, err := s.secretRepo.GetByID(ctx, secretID)
	if err != nil {
		return err
	}
	return s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.applyRetention(txCtx, secret)
	})
}

// applyRetention destroys versions beyond the maxVersions cap, then versions
// older than retentionDays. The current version is never destroyed.
func (s *secretUseCase) applyRetention(ctx context.Context, secret *secretsDomain.Secret) error {
	if secret.MaxVersions == nil && secret.RetentionDays == nil {
		return nil
	}

	versions, err := s.versionRepo.ListBySecret(ctx, secret.ID)
	if err != nil {
		return err
	}

	destroyed := make(map[uuid.UUID]bool)

	if secret.MaxVersions != nil {
		kept := 0
		for _, version := range versions {
			if version.IsDestroyed || version.VersionNumber == secret.CurrentVersion {
				if !version.IsDestroyed {
					kept++
				}
				continue
			}
			kept++
			if kept > *secret.MaxVersions {
				if err := s.versionRepo.Destroy(ctx, version.ID); err != nil {
					return err
				}
				destroyed[version.ID] = true
			}
		}
	}

	if secret.RetentionDays != nil {
		cutoff := time.Now().UTC().AddDate(0, 0, -*secret.RetentionDays)
		for _, version := range versions {
			if version.IsDestroyed || destroyed[version.ID] ||
				version.VersionNumber == secret.CurrentVersion {
				continue
			}
			if version.CreatedAt.Before(cutoff) {
				if err := s.versionRepo.Destroy(ctx, version.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// SoftDelete marks a secret inactive.
func (s *secretUseCase) SoftDelete(ctx context.Context, secretID uuid.UUID) error {
	secret, err := s.secretRepo.GetByID(ctx, secretID)
	if err != nil {
		return err
	}
	secret.IsActive = false
	secret.UpdatedAt = time.Now().UTC()
	return s.secretRepo.Update(ctx, secret)
}

// MarkRotated stamps the secret with the time of its last rotation.
func (s *secretUseCase) MarkRotated(ctx context.Context, secretID uuid.UUID) error {
	secret, err := s.secretRepo.GetByID(ctx, secretID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	secret.LastRotatedAt = &now
	secret.UpdatedAt = now
	return s.secretRepo.Update(ctx, secret)
}

// HardDelete removes the secret row; versions and metadata cascade.
func (s *secretUseCase) HardDelete(ctx context.Context, secretID uuid.UUID) error {
	if _, err := s.secretRepo.GetByID(ctx, secretID); err != nil {
		return err
	}
	return s.secretRepo.HardDelete(ctx, secretID)
}

// List returns secrets applying at most one filter.
func (s *secretUseCase) List(
	ctx context.Context,
	teamID uuid.UUID,
	filter secretsDomain.ListFilter,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	return s.secretRepo.List(ctx, teamID, filter, offset, limit)
}

// Search matches the term against secret names.
func (s *secretUseCase) Search(
	ctx context.Context,
	teamID uuid.UUID,
	term string,
	offset, limit int,
) ([]*secretsDomain.Secret, error) {
	return s.secretRepo.Search(ctx, teamID, term, offset, limit)
}

// ListPaths returns deduplicated sorted active paths under a prefix.
func (s *secretUseCase) ListPaths(
	ctx context.Context,
	teamID uuid.UUID,
	prefix string,
) ([]string, error) {
	return s.secretRepo.ListPaths(ctx, teamID, prefix)
}

// GetExpiringSecrets returns active secrets whose expiresAt falls within the
// next hours.
func (s *secretUseCase) GetExpiringSecrets(
	ctx context.Context,
	teamID uuid.UUID,
	hours int,
) ([]*secretsDomain.Secret, error) {
	now := time.Now().UTC()
	return s.secretRepo.ListExpiring(ctx, teamID, now, now.Add(time.Duration(hours)*time.Hour))
}

// newVersion encrypts a value and builds the version row.
func (s *secretUseCase) newVersion(
	secretID uuid.UUID,
	number uint,
	value string,
	changeDescription *string,
	createdBy uuid.UUID,
	now time.Time,
) (*secretsDomain.SecretVersion, error) {
	encrypted, err := s.crypto.Encrypt([]byte(value))
	if err != nil {
		return nil, err
	}

	return &secretsDomain.SecretVersion{
		ID:                uuid.Must(uuid.NewV7()),
		SecretID:          secretID,
		VersionNumber:     number,
		EncryptedValue:    encrypted,
		EncryptionKeyID:   cryptoDomain.DefaultKeyID,
		ChangeDescription: changeDescription,
		CreatedByUserID:   createdBy,
		IsDestroyed:       false,
		CreatedAt:         now,
	}, nil
}

// decryptVersion unwraps a version's envelope and updates lastAccessedAt.
func (s *secretUseCase) decryptVersion(
	ctx context.Context,
	secret *secretsDomain.Secret,
	version *secretsDomain.SecretVersion,
) (*secretsDomain.SecretValue, error) {
	plaintext, err := s.crypto.Decrypt(version.EncryptedValue)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	secret.LastAccessedAt = &now
	if err := s.secretRepo.Update(ctx, secret); err != nil {
		return nil, err
	}

	return &secretsDomain.SecretValue{
		Secret:  secret,
		Version: version.VersionNumber,
		Value:   string(plaintext),
	}, nil
}

// validateCreateInput enforces type-specific required fields.
func validateCreateInput(input secretsDomain.CreateSecretInput) error {
	if input.Path == "" || input.Name == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "path and name are required")
	}

	switch input.Type {
	case secretsDomain.SecretTypeStatic, secretsDomain.SecretTypeDynamic:
		if input.Value == "" {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "value is required")
		}
	case secretsDomain.SecretTypeReference:
		if input.ReferenceArn == nil || *input.ReferenceArn == "" {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "referenceArn is required")
		}
		if input.Value != "" {
			return secretsDomain.ErrValueOnReference
		}
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown secret type")
	}
	return nil
}

// normalizePath strips a single trailing slash.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}

// NewSecretUseCase creates a new secret use case instance with the provided dependencies.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	versionRepo SecretVersionRepository,
	metadataRepo SecretMetadataRepository,
	crypto cryptoUsecase.CryptoUseCase,
) SecretUseCase {
	return &secretUseCase{
		txManager:    txManager,
		secretRepo:   secretRepo,
		versionRepo:  versionRepo,
		metadataRepo: metadataRepo,
		crypto:       crypto,
	}
}
