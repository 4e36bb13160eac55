package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
)

// RunGenerateMasterKey generates a cryptographically secure 32-byte master
// key for envelope encryption. With a KMS key URI the key is wrapped by the
// KMS keeper and only the ciphertext is printed; without one the plaintext
// key is printed for development use.
//
// Output format (KMS mode):
//   - KMS_KEY_URI="<uri>"
//   - KMS_MASTER_KEY_CIPHERTEXT="<base64-kms-ciphertext>"
//
// Output format (dev mode):
//   - MASTER_KEY="<base64-key>"
//
// Security: Never deploy the dev mode output to production. Use cloud KMS
// providers (gcpkms, awskms, azurekeyvault, hashivault).
func RunGenerateMasterKey(ctx context.Context, kmsKeyURI string) error {
	// Generate a cryptographically secure 32-byte master key
	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	if kmsKeyURI == "" {
		fmt.Println("# Master Key Configuration (development mode)")
		fmt.Println("# WARNING: the key below is plaintext; use --kms-key-uri for production")
		fmt.Println()
		fmt.Printf("MASTER_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(masterKey))
		return nil
	}

	keeper, err := secrets.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			fmt.Printf("# Warning: failed to close KMS keeper: %v\n", closeErr)
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}

	fmt.Println("# Master Key Configuration (KMS mode)")
	fmt.Println("# Copy these environment variables to your .env file or secrets manager")
	fmt.Println()
	fmt.Printf("KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	fmt.Printf("KMS_MASTER_KEY_CIPHERTEXT=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))

	return nil
}
