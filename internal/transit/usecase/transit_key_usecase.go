package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	"github.com/allisson/vault/internal/database"
	apperrors "github.com/allisson/vault/internal/errors"
	transitDomain "github.com/allisson/vault/internal/transit/domain"
)

// transitKeyUseCase implements the TransitKeyUseCase interface.
type transitKeyUseCase struct {
	txManager   database.TxManager
	transitRepo TransitKeyRepository
	crypto      cryptoUsecase.CryptoUseCase
}

// Create generates and persists a new transit key with version 1.
func (t *transitKeyUseCase) Create(
	ctx context.Context,
	input transitDomain.CreateTransitKeyInput,
) (*transitDomain.TransitKey, error) {
	if input.Name == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "name is required")
	}

	existing, err := t.transitRepo.GetByName(ctx, input.TeamID, input.Name)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, transitDomain.ErrTransitKeyAlreadyExists
	}

	versions, err := t.appendVersion(nil)
	if err != nil {
		return nil, err
	}
	material, err := t.sealVersions(versions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &transitDomain.TransitKey{
		ID:                   uuid.Must(uuid.NewV7()),
		TeamID:               input.TeamID,
		Name:                 input.Name,
		Description:          input.Description,
		KeyMaterial:          material,
		CurrentVersion:       1,
		MinDecryptionVersion: 1,
		IsDeletable:          input.IsDeletable,
		CreatedByUserID:      input.CreatedByUserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := t.transitRepo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Get retrieves a transit key by team and name.
func (t *transitKeyUseCase) Get(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	return t.transitRepo.GetByName(ctx, teamID, name)
}

// List retrieves the transit keys of a team.
func (t *transitKeyUseCase) List(
	ctx context.Context,
	teamID uuid.UUID,
	offset, limit int,
) ([]*transitDomain.TransitKey, error) {
	return t.transitRepo.List(ctx, teamID, offset, limit)
}

// Rotate appends a fresh key version inside a row-locked transaction.
func (t *transitKeyUseCase) Rotate(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	var rotated *transitDomain.TransitKey

	err := t.txManager.WithTx(ctx, func(txCtx context.Context) error {
		key, err := t.transitRepo.GetByNameForUpdate(txCtx, teamID, name)
		if err != nil {
			return err
		}

		versions, err := t.openVersions(key)
		if err != nil {
			return err
		}

		versions, err = t.appendVersion(versions)
		if err != nil {
			return err
		}
		material, err := t.sealVersions(versions)
		if err != nil {
			return err
		}

		key.KeyMaterial = material
		key.CurrentVersion++
		key.UpdatedAt = time.Now().UTC()

		if err := t.transitRepo.Update(txCtx, key); err != nil {
			return err
		}
		rotated = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rotated, nil
}

// Update applies partial changes to a transit key.
func (t *transitKeyUseCase) Update(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	input transitDomain.UpdateTransitKeyInput,
) (*transitDomain.TransitKey, error) {
	key, err := t.transitRepo.GetByName(ctx, teamID, name)
	if err != nil {
		return nil, err
	}

	if input.MinDecryptionVersion != nil {
		min := *input.MinDecryptionVersion
		if min < key.MinDecryptionVersion {
			return nil, apperrors.Wrap(
				apperrors.ErrInvalidInput, "minDecryptionVersion can only be raised",
			)
		}
		if min > key.CurrentVersion {
			return nil, apperrors.Wrap(
				apperrors.ErrInvalidInput, "minDecryptionVersion cannot exceed the current version",
			)
		}
		key.MinDecryptionVersion = min
	}
	if input.Description != nil {
		key.Description = input.Description
	}
	if input.IsDeletable != nil {
		key.IsDeletable = *input.IsDeletable
	}
	key.UpdatedAt = time.Now().UTC()

	if err := t.transitRepo.Update(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt wraps plaintext under the current key version.
func (t *transitKeyUseCase) Encrypt(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	plaintext []byte,
) (string, error) {
	key, err := t.transitRepo.GetByName(ctx, teamID, name)
	if err != nil {
		return "", err
	}

	keyBytes, err := t.versionKeyBytes(key, key.CurrentVersion)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(keyBytes)

	keyID := transitDomain.FormatKeyID(key.Name, key.CurrentVersion)
	return t.crypto.EncryptWithKey(plaintext, keyID, keyBytes)
}

// Decrypt unwraps an envelope with the version named in its key id.
func (t *transitKeyUseCase) Decrypt(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	envelope string,
) ([]byte, error) {
	key, version, err := t.sourceVersion(ctx, teamID, name, envelope)
	if err != nil {
		return nil, err
	}

	keyBytes, err := t.versionKeyBytes(key, version)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(keyBytes)

	return t.crypto.DecryptWithKey(envelope, keyBytes)
}

// Rewrap re-encrypts an envelope from its source version to the current one.
func (t *transitKeyUseCase) Rewrap(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	envelope string,
) (string, error) {
	key, version, err := t.sourceVersion(ctx, teamID, name, envelope)
	if err != nil {
		return "", err
	}

	oldKey, err := t.versionKeyBytes(key, version)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(oldKey)

	newKey, err := t.versionKeyBytes(key, key.CurrentVersion)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(newKey)

	newKeyID := transitDomain.FormatKeyID(key.Name, key.CurrentVersion)
	return t.crypto.Rewrap(envelope, oldKey, newKey, newKeyID)
}

// GenerateDataKey issues a fresh data key wrapped under the current version.
func (t *transitKeyUseCase) GenerateDataKey(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.DataKey, error) {
	key, err := t.transitRepo.GetByName(ctx, teamID, name)
	if err != nil {
		return nil, err
	}

	dataKey, err := t.crypto.GenerateDataKey()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dataKey)

	keyBytes, err := t.versionKeyBytes(key, key.CurrentVersion)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(keyBytes)

	keyID := transitDomain.FormatKeyID(key.Name, key.CurrentVersion)
	wrapped, err := t.crypto.EncryptWithKey(dataKey, keyID, keyBytes)
	if err != nil {
		return nil, err
	}

	return &transitDomain.DataKey{
		PlaintextBase64: base64.StdEncoding.EncodeToString(dataKey),
		Wrapped:         wrapped,
	}, nil
}

// Delete removes a transit key when it is deletable.
func (t *transitKeyUseCase) Delete(ctx context.Context, teamID uuid.UUID, name string) error {
	key, err := t.transitRepo.GetByName(ctx, teamID, name)
	if err != nil {
		return err
	}
	if !key.IsDeletable {
		return transitDomain.ErrKeyNotDeletable
	}
	return t.transitRepo.Delete(ctx, key.ID)
}

// sourceVersion loads the key and resolves the envelope's source version,
// enforcing name match and the minimum decryption version.
func (t *transitKeyUseCase) sourceVersion(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	envelope string,
) (*transitDomain.TransitKey, uint, error) {
	key, err := t.transitRepo.GetByName(ctx, teamID, name)
	if err != nil {
		return nil, 0, err
	}

	keyID, err := t.crypto.ExtractKeyID(envelope)
	if err != nil {
		return nil, 0, err
	}
	envelopeName, version, err := transitDomain.ParseKeyID(keyID)
	if err != nil {
		return nil, 0, err
	}
	if envelopeName != key.Name {
		return nil, 0, apperrors.Wrap(
			apperrors.ErrInvalidInput, "envelope was not produced by this key",
		)
	}
	if version < key.MinDecryptionVersion {
		return nil, 0, transitDomain.ErrVersionBelowMin
	}

	return key, version, nil
}

// openVersions decrypts the key-material list of a key.
func (t *transitKeyUseCase) openVersions(
	key *transitDomain.TransitKey,
) ([]transitDomain.KeyVersion, error) {
	raw, err := t.crypto.Decrypt(key.KeyMaterial)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(raw)

	var versions []transitDomain.KeyVersion
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode key material")
	}
	return versions, nil
}

// sealVersions serialises and envelope-encrypts a key-material list.
func (t *transitKeyUseCase) sealVersions(versions []transitDomain.KeyVersion) (string, error) {
	raw, err := json.Marshal(versions)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode key material")
	}
	defer cryptoDomain.Zero(raw)

	return t.crypto.Encrypt(raw)
}

// appendVersion adds a fresh random key as the next version.
func (t *transitKeyUseCase) appendVersion(
	versions []transitDomain.KeyVersion,
) ([]transitDomain.KeyVersion, error) {
	keyBytes, err := t.crypto.GenerateDataKey()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(keyBytes)

	next := uint(1)
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	return append(versions, transitDomain.KeyVersion{
		Version: next,
		Key:     base64.StdEncoding.EncodeToString(keyBytes),
	}), nil
}

// versionKeyBytes decrypts the material list and returns the raw key of one
// version. Callers must zero the returned bytes.
func (t *transitKeyUseCase) versionKeyBytes(
	key *transitDomain.TransitKey,
	version uint,
) ([]byte, error) {
	versions, err := t.openVersions(key)
	if err != nil {
		return nil, err
	}

	for _, entry := range versions {
		if entry.Version != version {
			continue
		}
		keyBytes, err := base64.StdEncoding.DecodeString(entry.Key)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to decode key version")
		}
		return keyBytes, nil
	}
	return nil, transitDomain.ErrKeyVersionMissing
}

// NewTransitKeyUseCase creates a new transit key use case instance with the provided dependencies.
func NewTransitKeyUseCase(
	txManager database.TxManager,
	transitRepo TransitKeyRepository,
	crypto cryptoUsecase.CryptoUseCase,
) TransitKeyUseCase {
	return &transitKeyUseCase{
		txManager:   txManager,
		transitRepo: transitRepo,
		crypto:      crypto,
	}
}
