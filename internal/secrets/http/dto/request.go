// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"fmt"
	"math"
	"time"

	validation "github.com/jellydator/validation"

	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
	customValidation "github.com/allisson/vault/internal/validation"
)

// CreateSecretRequest contains the parameters for creating a secret. The path
// comes from the URL, not the body. Metadata values may be JSON strings,
// numbers or booleans; they are normalised to strings before storage.
type CreateSecretRequest struct {
	Name          string                 `json:"name"`
	Description   *string                `json:"description"`
	Type          string                 `json:"type"`
	Value         string                 `json:"value"`
	Metadata      map[string]interface{} `json:"metadata"`
	MaxVersions   *int                   `json:"max_versions"`
	RetentionDays *int                   `json:"retention_days"`
	ExpiresAt     *time.Time             `json:"expires_at"`
	ReferenceArn  *string                `json:"reference_arn"`
}

// Validate checks if the create secret request is valid.
func (r *CreateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Type,
			validation.Required,
			validation.In(
				string(secretsDomain.SecretTypeStatic),
				string(secretsDomain.SecretTypeDynamic),
				string(secretsDomain.SecretTypeReference),
			),
		),
		validation.Field(&r.MaxVersions, validation.Min(1)),
		validation.Field(&r.RetentionDays, validation.Min(1)),
	)
}

// NormalisedMetadata converts the metadata values to strings. Strings pass
// through, integral numbers lose their fraction marker and booleans become
// "true"/"false"; anything else is rejected.
func (r *CreateSecretRequest) NormalisedMetadata() (map[string]string, error) {
	return normaliseMetadata(r.Metadata)
}

// UpdateSecretRequest contains partial updates for a secret. A non-empty
// value appends a new version; a non-nil metadata map fully replaces the
// stored metadata.
type UpdateSecretRequest struct {
	Value             string                 `json:"value"`
	ChangeDescription *string                `json:"change_description"`
	Description       *string                `json:"description"`
	Metadata          map[string]interface{} `json:"metadata"`
	MaxVersions       *int                   `json:"max_versions"`
	RetentionDays     *int                   `json:"retention_days"`
	ExpiresAt         *time.Time             `json:"expires_at"`
}

// Validate checks if the update secret request is valid.
func (r *UpdateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MaxVersions, validation.Min(1)),
		validation.Field(&r.RetentionDays, validation.Min(1)),
	)
}

// NormalisedMetadata converts the metadata values to strings; nil stays nil.
func (r *UpdateSecretRequest) NormalisedMetadata() (map[string]string, error) {
	if r.Metadata == nil {
		return nil, nil
	}
	return normaliseMetadata(r.Metadata)
}

func normaliseMetadata(metadata map[string]interface{}) (map[string]string, error) {
	if metadata == nil {
		return nil, nil
	}

	normalised := make(map[string]string, len(metadata))
	for key, value := range metadata {
		switch v := value.(type) {
		case string:
			normalised[key] = v
		case float64:
			// encoding/json decodes every number as float64; keep integral
			// values (ports and the like) free of a trailing ".0".
			if v == math.Trunc(v) {
				normalised[key] = fmt.Sprintf("%.0f", v)
			} else {
				normalised[key] = fmt.Sprintf("%v", v)
			}
		case bool:
			normalised[key] = fmt.Sprintf("%t", v)
		default:
			return nil, fmt.Errorf("metadata value for %q must be a string, number or boolean", key)
		}
	}

	return normalised, nil
}
