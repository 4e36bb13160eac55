// Package usecase implements the transit encryption-as-a-service operations.
// Callers never see key material: every operation takes or returns envelopes
// and the version list stays encrypted at rest.
package usecase

import (
	"context"

	"github.com/google/uuid"

	transitDomain "github.com/allisson/vault/internal/transit/domain"
)

// TransitKeyRepository defines the interface for TransitKey persistence operations.
type TransitKeyRepository interface {
	Create(ctx context.Context, key *transitDomain.TransitKey) error
	Update(ctx context.Context, key *transitDomain.TransitKey) error
	GetByName(ctx context.Context, teamID uuid.UUID, name string) (*transitDomain.TransitKey, error)
	// GetByNameForUpdate takes a row lock; rotation uses it inside a
	// transaction so concurrent rotations of one key serialise.
	GetByNameForUpdate(ctx context.Context, teamID uuid.UUID, name string) (*transitDomain.TransitKey, error)
	List(ctx context.Context, teamID uuid.UUID, offset, limit int) ([]*transitDomain.TransitKey, error)
	Delete(ctx context.Context, keyID uuid.UUID) error
}

// TransitKeyUseCase defines the interface for transit key business logic.
type TransitKeyUseCase interface {
	// Create generates version 1 of a named key and stores the encrypted
	// version list.
	Create(ctx context.Context, input transitDomain.CreateTransitKeyInput) (*transitDomain.TransitKey, error)

	// Get retrieves a transit key by team and name.
	Get(ctx context.Context, teamID uuid.UUID, name string) (*transitDomain.TransitKey, error)

	// List retrieves the transit keys of a team.
	List(ctx context.Context, teamID uuid.UUID, offset, limit int) ([]*transitDomain.TransitKey, error)

	// Rotate appends a fresh key version and makes it current. Older versions
	// stay in the list for decryption.
	Rotate(ctx context.Context, teamID uuid.UUID, name string) (*transitDomain.TransitKey, error)

	// Update applies partial changes. MinDecryptionVersion may only move up
	// and never beyond the current version.
	Update(ctx context.Context, teamID uuid.UUID, name string, input transitDomain.UpdateTransitKeyInput) (*transitDomain.TransitKey, error)

	// Encrypt wraps plaintext under the current key version; the envelope
	// embeds the "<name>:v<N>" key id.
	Encrypt(ctx context.Context, teamID uuid.UUID, name string, plaintext []byte) (string, error)

	// Decrypt unwraps an envelope with the version named in its key id.
	// Versions below minDecryptionVersion are rejected.
	Decrypt(ctx context.Context, teamID uuid.UUID, name string, envelope string) ([]byte, error)

	// Rewrap re-encrypts an envelope from its source version to the current
	// version without returning the plaintext to the caller.
	Rewrap(ctx context.Context, teamID uuid.UUID, name string, envelope string) (string, error)

	// GenerateDataKey issues a fresh 32-byte key, returned in plaintext and
	// wrapped under the current key version.
	GenerateDataKey(ctx context.Context, teamID uuid.UUID, name string) (*transitDomain.DataKey, error)

	// Delete removes a key; only permitted when isDeletable is set.
	Delete(ctx context.Context, teamID uuid.UUID, name string) error
}
