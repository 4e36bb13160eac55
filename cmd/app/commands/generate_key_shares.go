package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	sealService "github.com/allisson/vault/internal/seal/service"
)

// RunGenerateKeyShares generates a fresh 32-byte master key and splits it
// into n Shamir shares with threshold m. The master key ciphertext still has
// to be wrapped for production (see generate-master-key); the shares are the
// unseal material handed to the key custodians.
//
// Each share is base64 of indexByte || shareBytes, the format accepted by
// POST /v1/seal/unseal.
//
// Security: every share is printed exactly once and never stored. Distribute
// them to separate custodians over separate channels.
func RunGenerateKeyShares(n, m int) error {
	if n < 2 || n > 255 {
		return fmt.Errorf("total-shares must be between 2 and 255, got %d", n)
	}
	if m < 2 || m > n {
		return fmt.Errorf("threshold must be between 2 and total-shares, got %d", m)
	}

	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	shares, err := sealService.Split(masterKey, n, m)
	if err != nil {
		return fmt.Errorf("failed to split master key: %w", err)
	}

	fmt.Println("# Master Key and Key Shares")
	fmt.Println("# The key below goes to the server environment; the shares go to custodians.")
	fmt.Println()
	fmt.Printf("MASTER_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(masterKey))
	fmt.Printf("SEAL_TOTAL_SHARES=\"%d\"\n", n)
	fmt.Printf("SEAL_THRESHOLD=\"%d\"\n", m)
	fmt.Println()

	for i, share := range shares {
		raw := make([]byte, 0, len(share)+1)
		raw = append(raw, byte(i+1))
		raw = append(raw, share...)
		fmt.Printf("# Share %d of %d\n%s\n", i+1, n, base64.StdEncoding.EncodeToString(raw))
		cryptoDomain.Zero(share)
		cryptoDomain.Zero(raw)
	}

	return nil
}
