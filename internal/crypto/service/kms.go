package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
)

// LoadMasterKeyFromKMS decrypts an envelope-encrypted master key through a
// cloud KMS keeper (aws, gcp, azure or hashivault, selected by the key URI
// scheme) and validates the recovered key material.
//
// This keeps the plaintext master key out of the environment in production
// deployments: only the KMS ciphertext is configured.
func LoadMasterKeyFromKMS(
	ctx context.Context,
	keyURI string,
	ciphertextBase64 string,
) (*cryptoDomain.MasterKey, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid master key ciphertext base64: %w", err)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper %q: %w", keyURI, err)
	}
	defer keeper.Close()

	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt master key via KMS: %w", err)
	}
	defer cryptoDomain.Zero(plaintext)

	return cryptoDomain.NewMasterKey(plaintext)
}
