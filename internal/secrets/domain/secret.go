// Package domain defines the core domain models for secret management.
// Secrets are path-addressed within a team and use an immutable versioning
// system: every value update inserts a new SecretVersion row and prior
// versions are never mutated, only destroyed by retention.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecretType classifies how a secret's value is produced and stored.
type SecretType string

// Secret types.
const (
	// SecretTypeStatic is a caller-supplied value encrypted at rest.
	SecretTypeStatic SecretType = "STATIC"
	// SecretTypeDynamic is a value that backs short-lived database leases.
	SecretTypeDynamic SecretType = "DYNAMIC"
	// SecretTypeReference points at an external resource and stores no value.
	SecretTypeReference SecretType = "REFERENCE"
)

// DestroyedValueSentinel replaces the encrypted value of a destroyed version.
// The row stays for audit and listing; the value is irrecoverable.
const DestroyedValueSentinel = "DESTROYED"

// Secret is the versioned, path-addressed parent entity. The path is unique
// per team. REFERENCE secrets keep CurrentVersion at 0 and own no versions.
type Secret struct {
	// ID is the unique identifier of the secret.
	ID uuid.UUID
	// TeamID scopes the secret to its owning team.
	TeamID uuid.UUID
	// Path is the logical key used to address the secret (e.g. "services/app/db").
	Path string
	// Name is the human-readable display name.
	Name string
	// Description is optional free text.
	Description *string
	// Type classifies the secret (STATIC, DYNAMIC, REFERENCE).
	Type SecretType
	// CurrentVersion is the version served by value reads; 0 for REFERENCE.
	CurrentVersion uint
	// MaxVersions caps the number of non-destroyed versions kept by retention.
	MaxVersions *int
	// RetentionDays destroys versions older than this many days.
	RetentionDays *int
	// ExpiresAt marks when the secret itself expires (nil if never).
	ExpiresAt *time.Time
	// LastAccessedAt is updated on every value read.
	LastAccessedAt *time.Time
	// LastRotatedAt is updated by the rotation service.
	LastRotatedAt *time.Time
	// OwnerUserID is the user that created the secret.
	OwnerUserID uuid.UUID
	// ReferenceArn is the external resource identifier for REFERENCE secrets.
	ReferenceArn *string
	// IsActive is false after a soft delete.
	IsActive bool
	// CreatedAt is the UTC creation timestamp.
	CreatedAt time.Time
	// UpdatedAt is the UTC timestamp of the last mutation.
	UpdatedAt time.Time
}

// SecretVersion is one immutable value of a secret. (SecretID, VersionNumber)
// is unique and version numbers are dense, starting at 1.
type SecretVersion struct {
	// ID is the unique identifier of the version row.
	ID uuid.UUID
	// SecretID references the owning secret.
	SecretID uuid.UUID
	// VersionNumber is the 1-based, dense version number.
	VersionNumber uint
	// EncryptedValue is the opaque ciphertext envelope, or the DESTROYED sentinel.
	EncryptedValue string
	// EncryptionKeyID records the envelope key id used at write time.
	EncryptionKeyID string
	// ChangeDescription is optional free text attached at write time.
	ChangeDescription *string
	// CreatedByUserID is the user that wrote this version.
	CreatedByUserID uuid.UUID
	// IsDestroyed marks the version as irrecoverably destroyed by retention.
	IsDestroyed bool
	// CreatedAt is the UTC creation timestamp.
	CreatedAt time.Time
}

// ListFilter narrows a secret listing. Filters apply at most one at a time in
// priority order: Type, PathPrefix, ActiveOnly, unfiltered.
type ListFilter struct {
	Type       *SecretType
	PathPrefix *string
	ActiveOnly bool
}

// CreateSecretInput carries the parameters for creating a secret.
type CreateSecretInput struct {
	TeamID        uuid.UUID
	Path          string
	Name          string
	Description   *string
	Type          SecretType
	Value         string
	Metadata      map[string]string
	MaxVersions   *int
	RetentionDays *int
	ExpiresAt     *time.Time
	OwnerUserID   uuid.UUID
	ReferenceArn  *string
}

// UpdateSecretInput carries the parameters for updating a secret. A non-empty
// Value creates a new version; the other fields apply independently. A
// non-nil Metadata fully replaces the existing metadata set.
type UpdateSecretInput struct {
	Value             string
	ChangeDescription *string
	Description       *string
	MaxVersions       *int
	RetentionDays     *int
	ExpiresAt         *time.Time
	Metadata          map[string]string
	UpdatedByUserID   uuid.UUID
}

// SecretValue is a decrypted read result.
type SecretValue struct {
	Secret  *Secret
	Version uint
	Value   string
}
