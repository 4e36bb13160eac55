// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/vault/internal/validation"
)

// CreateTransitKeyRequest contains the parameters for creating a transit key.
type CreateTransitKeyRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsDeletable bool    `json:"is_deletable"`
}

// Validate checks if the create transit key request is valid.
func (r *CreateTransitKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
	)
}

// UpdateTransitKeyRequest contains partial updates for a transit key.
type UpdateTransitKeyRequest struct {
	Description          *string `json:"description"`
	MinDecryptionVersion *uint   `json:"min_decryption_version"`
	IsDeletable          *bool   `json:"is_deletable"`
}

// Validate checks if the update transit key request is valid.
func (r *UpdateTransitKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MinDecryptionVersion, validation.Min(uint(1))),
	)
}

// EncryptRequest contains base64 plaintext to encrypt.
type EncryptRequest struct {
	Plaintext string `json:"plaintext"`
}

// Validate checks if the encrypt request is valid.
func (r *EncryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Plaintext,
			validation.Required,
			customValidation.Base64,
		),
	)
}

// DecryptRequest contains an envelope to decrypt.
type DecryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

// Validate checks if the decrypt request is valid.
func (r *DecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Ciphertext,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// RewrapRequest contains an envelope to re-encrypt under the current version.
type RewrapRequest struct {
	Ciphertext string `json:"ciphertext"`
}

// Validate checks if the rewrap request is valid.
func (r *RewrapRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Ciphertext,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}
