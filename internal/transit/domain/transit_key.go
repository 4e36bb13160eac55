// Package domain defines the models for transit encryption-as-a-service.
//
// A transit key is a named, versioned key whose material never leaves the
// service: callers submit plaintext or envelopes and get envelopes or
// plaintext back. All versions of a key live in a single key-material list
// that is serialised to JSON and envelope-encrypted at rest; rotation appends
// to the list and older versions stay usable for decryption until
// minDecryptionVersion is raised past them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransitKey is a named versioned encryption key scoped to a team.
//
// KeyMaterial is an encrypted envelope wrapping the JSON serialisation of
// []KeyVersion. It must never be exposed on any API response.
type TransitKey struct {
	ID     uuid.UUID
	TeamID uuid.UUID
	// Name identifies the key within its team; envelopes embed it in the
	// "<name>:v<N>" key id.
	Name        string
	Description *string
	// KeyMaterial is the envelope-encrypted version list. Never serialised out.
	KeyMaterial string
	// CurrentVersion is the version used by every new encryption.
	CurrentVersion uint
	// MinDecryptionVersion rejects decryption with versions below it. Raising
	// it never removes entries from the material list.
	MinDecryptionVersion uint
	// IsDeletable gates deletion; keys are created non-deletable by default.
	IsDeletable     bool
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KeyVersion is one entry of the decrypted key-material list.
type KeyVersion struct {
	Version uint   `json:"version"`
	Key     string `json:"key"` // base64 of the raw 32-byte key
}

// CreateTransitKeyInput carries the parameters for creating a transit key.
type CreateTransitKeyInput struct {
	TeamID          uuid.UUID
	Name            string
	Description     *string
	IsDeletable     bool
	CreatedByUserID uuid.UUID
}

// UpdateTransitKeyInput carries partial updates. MinDecryptionVersion may only
// be raised.
type UpdateTransitKeyInput struct {
	Description          *string
	MinDecryptionVersion *uint
	IsDeletable          *bool
}

// DataKey is the result of data-key issuance: the plaintext key for immediate
// use and an envelope of the same key for storage.
type DataKey struct {
	PlaintextBase64 string
	Wrapped         string
}
