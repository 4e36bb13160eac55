// Package usecase defines the interfaces and implementations for secret
// management use cases. Use cases orchestrate repositories, envelope
// encryption and retention to implement versioned secret storage.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// SecretRepository defines the interface for Secret persistence operations.
type SecretRepository interface {
	Create(ctx context.Context, secret *secretsDomain.Secret) error
	Update(ctx context.Context, secret *secretsDomain.Secret) error
	GetByID(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error)
	GetByPath(ctx context.Context, teamID uuid.UUID, path string) (*secretsDomain.Secret, error)
	List(ctx context.Context, teamID uuid.UUID, filter secretsDomain.ListFilter, offset, limit int) ([]*secretsDomain.Secret, error)
	Search(ctx context.Context, teamID uuid.UUID, term string, offset, limit int) ([]*secretsDomain.Secret, error)
	ListPaths(ctx context.Context, teamID uuid.UUID, prefix string) ([]string, error)
	ListExpiring(ctx context.Context, teamID uuid.UUID, now, until time.Time) ([]*secretsDomain.Secret, error)
	HardDelete(ctx context.Context, secretID uuid.UUID) error
}

// SecretVersionRepository defines the interface for SecretVersion persistence operations.
type SecretVersionRepository interface {
	Create(ctx context.Context, version *secretsDomain.SecretVersion) error
	GetByNumber(ctx context.Context, secretID uuid.UUID, versionNumber uint) (*secretsDomain.SecretVersion, error)
	ListBySecret(ctx context.Context, secretID uuid.UUID) ([]*secretsDomain.SecretVersion, error)
	Destroy(ctx context.Context, versionID uuid.UUID) error
}

// SecretMetadataRepository defines the interface for secret metadata persistence operations.
type SecretMetadataRepository interface {
	Replace(ctx context.Context, secretID uuid.UUID, metadata map[string]string) error
	GetBySecret(ctx context.Context, secretID uuid.UUID) (map[string]string, error)
}

// SecretUseCase defines the interface for secret management business logic.
type SecretUseCase interface {
	// Create stores a new secret. STATIC and DYNAMIC secrets get their value
	// encrypted as version 1; REFERENCE secrets store only the reference ARN.
	Create(ctx context.Context, input secretsDomain.CreateSecretInput) (*secretsDomain.Secret, error)

	// Get retrieves secret metadata by id without decrypting anything.
	Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error)

	// GetByPath retrieves secret metadata by team and path without decrypting.
	GetByPath(ctx context.Context, teamID uuid.UUID, path string) (*secretsDomain.Secret, error)

	// GetMetadata retrieves the key/value metadata set of a secret.
	GetMetadata(ctx context.Context, secretID uuid.UUID) (map[string]string, error)

	// GetValue decrypts the current version and updates lastAccessedAt.
	GetValue(ctx context.Context, teamID uuid.UUID, path string) (*secretsDomain.SecretValue, error)

	// GetVersion decrypts a historical version. Fails if the version was
	// destroyed by retention. Updates lastAccessedAt.
	GetVersion(ctx context.Context, teamID uuid.UUID, path string, versionNumber uint) (*secretsDomain.SecretValue, error)

	// ListVersions returns all version rows, newest first, without decrypting.
	ListVersions(ctx context.Context, secretID uuid.UUID) ([]*secretsDomain.SecretVersion, error)

	// Update applies partial changes; a non-empty value appends a new version
	// and runs retention afterwards.
	Update(ctx context.Context, teamID uuid.UUID, path string, input secretsDomain.UpdateSecretInput) (*secretsDomain.Secret, error)

	// ApplyRetention destroys versions beyond maxVersions and older than
	// retentionDays, never touching the current version.
	ApplyRetention(ctx context.Context, secretID uuid.UUID) error

	// SoftDelete marks the secret inactive, keeping all rows.
	SoftDelete(ctx context.Context, secretID uuid.UUID) error

	// MarkRotated stamps the secret with the time of its last rotation.
	MarkRotated(ctx context.Context, secretID uuid.UUID) error

	// HardDelete removes the secret with its versions and metadata. Irreversible.
	HardDelete(ctx context.Context, secretID uuid.UUID) error

	// List returns secrets for a team applying at most one filter, in priority
	// order: type, path prefix, active only.
	List(ctx context.Context, teamID uuid.UUID, filter secretsDomain.ListFilter, offset, limit int) ([]*secretsDomain.Secret, error)

	// Search matches the term against secret names, case-insensitively.
	Search(ctx context.Context, teamID uuid.UUID, term string, offset, limit int) ([]*secretsDomain.Secret, error)

	// ListPaths returns deduplicated sorted paths of active secrets under a prefix.
	ListPaths(ctx context.Context, teamID uuid.UUID, prefix string) ([]string, error)

	// GetExpiringSecrets returns active secrets expiring within the next hours.
	GetExpiringSecrets(ctx context.Context, teamID uuid.UUID, hours int) ([]*secretsDomain.Secret, error)
}
