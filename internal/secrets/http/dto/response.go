// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// SecretResponse represents secret metadata in API responses. It never
// carries a plaintext or encrypted value.
type SecretResponse struct {
	ID             string     `json:"id"`
	TeamID         string     `json:"team_id"`
	Path           string     `json:"path"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	Type           string     `json:"type"`
	CurrentVersion uint       `json:"current_version"`
	MaxVersions    *int       `json:"max_versions,omitempty"`
	RetentionDays  *int       `json:"retention_days,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	LastRotatedAt  *time.Time `json:"last_rotated_at,omitempty"`
	ReferenceArn   *string    `json:"reference_arn,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SecretValueResponse carries a decrypted secret value.
// SECURITY: Must be transmitted over HTTPS in production.
type SecretValueResponse struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Version uint   `json:"version"`
	Value   string `json:"value"`
}

// SecretMetadataResponse carries the key/value metadata set of a secret.
type SecretMetadataResponse struct {
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata"`
}

// SecretVersionResponse represents one version row. Encrypted material and
// key ids stay server-side.
type SecretVersionResponse struct {
	ID                string    `json:"id"`
	VersionNumber     uint      `json:"version_number"`
	ChangeDescription *string   `json:"change_description,omitempty"`
	CreatedByUserID   string    `json:"created_by_user_id"`
	IsDestroyed       bool      `json:"is_destroyed"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListSecretVersionsResponse represents the version list of a secret.
type ListSecretVersionsResponse struct {
	Data []SecretVersionResponse `json:"data"`
}

// ListPathsResponse represents the deduplicated path listing.
type ListPathsResponse struct {
	Paths []string `json:"paths"`
}

// MapSecretToResponse converts a domain secret to an API response.
func MapSecretToResponse(secret *secretsDomain.Secret) SecretResponse {
	return SecretResponse{
		ID:             secret.ID.String(),
		TeamID:         secret.TeamID.String(),
		Path:           secret.Path,
		Name:           secret.Name,
		Description:    secret.Description,
		Type:           string(secret.Type),
		CurrentVersion: secret.CurrentVersion,
		MaxVersions:    secret.MaxVersions,
		RetentionDays:  secret.RetentionDays,
		ExpiresAt:      secret.ExpiresAt,
		LastAccessedAt: secret.LastAccessedAt,
		LastRotatedAt:  secret.LastRotatedAt,
		ReferenceArn:   secret.ReferenceArn,
		IsActive:       secret.IsActive,
		CreatedAt:      secret.CreatedAt,
		UpdatedAt:      secret.UpdatedAt,
	}
}

// MapSecretValueToResponse converts a decrypted read result to an API response.
func MapSecretValueToResponse(value *secretsDomain.SecretValue) SecretValueResponse {
	return SecretValueResponse{
		Path:    value.Secret.Path,
		Type:    string(value.Secret.Type),
		Version: value.Version,
		Value:   value.Value,
	}
}

// MapVersionsToListResponse converts domain version rows to an API response.
func MapVersionsToListResponse(versions []*secretsDomain.SecretVersion) ListSecretVersionsResponse {
	data := make([]SecretVersionResponse, 0, len(versions))
	for _, version := range versions {
		data = append(data, SecretVersionResponse{
			ID:                version.ID.String(),
			VersionNumber:     version.VersionNumber,
			ChangeDescription: version.ChangeDescription,
			CreatedByUserID:   version.CreatedByUserID.String(),
			IsDestroyed:       version.IsDestroyed,
			CreatedAt:         version.CreatedAt,
		})
	}

	return ListSecretVersionsResponse{Data: data}
}
