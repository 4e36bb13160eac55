// Package usecase implements the envelope encryption facade used by every
// module that stores or serves ciphertext: secret storage, transit keys and
// dynamic-lease credentials.
package usecase

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoService "github.com/allisson/vault/internal/crypto/service"
)

// selfTestPlaintext is round-tripped at startup; a mismatch is fatal.
const selfTestPlaintext = "vault-encryption-test"

// cryptoUseCase implements CryptoUseCase on top of the service primitives.
type cryptoUseCase struct {
	masterKey *cryptoDomain.MasterKey
}

// NewCryptoUseCase creates the crypto use case and performs the mandatory
// startup self-test (encrypt/decrypt round trip). Any failure is returned as
// a fatal initialization error.
func NewCryptoUseCase(masterKey *cryptoDomain.MasterKey) (CryptoUseCase, error) {
	uc := &cryptoUseCase{masterKey: masterKey}

	envelope, err := uc.Encrypt([]byte(selfTestPlaintext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrSelfTestFailed, err)
	}
	roundTrip, err := uc.Decrypt(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrSelfTestFailed, err)
	}
	if string(roundTrip) != selfTestPlaintext {
		return nil, cryptoDomain.ErrSelfTestFailed
	}

	return uc, nil
}

// purposeKeyID returns the key id embedded for a purpose-derived KEK.
func purposeKeyID(purpose cryptoDomain.Purpose) string {
	if purpose == cryptoDomain.PurposeSecretStorage {
		return cryptoDomain.DefaultKeyID
	}
	return fmt.Sprintf("vault-%s-v1", purpose)
}

// Encrypt wraps plaintext with the secret-storage KEK and the default key id.
func (c *cryptoUseCase) Encrypt(plaintext []byte) (string, error) {
	return c.EncryptWithPurpose(plaintext, cryptoDomain.PurposeSecretStorage)
}

// EncryptWithPurpose wraps plaintext with the KEK derived for the purpose.
func (c *cryptoUseCase) EncryptWithPurpose(
	plaintext []byte,
	purpose cryptoDomain.Purpose,
) (string, error) {
	kek, err := cryptoService.DeriveKek(c.masterKey, purpose)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(kek)

	return c.EncryptWithKey(plaintext, purposeKeyID(purpose), kek)
}

// EncryptWithKey wraps plaintext with the given 32-byte key and key id.
func (c *cryptoUseCase) EncryptWithKey(plaintext []byte, keyID string, key []byte) (string, error) {
	dek, err := cryptoService.GenerateDataKey()
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := cryptoService.NewAESGCM(dek)
	if err != nil {
		return "", err
	}
	ciphertext, dataIV, err := dataCipher.Encrypt(plaintext)
	if err != nil {
		return "", err
	}

	kekCipher, err := cryptoService.NewAESGCM(key)
	if err != nil {
		return "", err
	}
	encryptedDek, dekIV, err := kekCipher.Encrypt(dek)
	if err != nil {
		return "", err
	}

	return cryptoService.EncodeEnvelope(&cryptoService.Envelope{
		KeyID:        keyID,
		DekIV:        dekIV,
		EncryptedDek: encryptedDek,
		DataIV:       dataIV,
		Ciphertext:   ciphertext,
	}), nil
}

// Decrypt unwraps an envelope produced by Encrypt.
func (c *cryptoUseCase) Decrypt(envelope string) ([]byte, error) {
	return c.DecryptWithPurpose(envelope, cryptoDomain.PurposeSecretStorage)
}

// DecryptWithPurpose unwraps an envelope with the KEK derived for the purpose.
func (c *cryptoUseCase) DecryptWithPurpose(
	envelope string,
	purpose cryptoDomain.Purpose,
) ([]byte, error) {
	kek, err := cryptoService.DeriveKek(c.masterKey, purpose)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(kek)

	return c.DecryptWithKey(envelope, kek)
}

// DecryptWithKey unwraps an envelope with the supplied 32-byte key.
func (c *cryptoUseCase) DecryptWithKey(envelope string, key []byte) ([]byte, error) {
	env, err := cryptoService.DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	kekCipher, err := cryptoService.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	dek, err := kekCipher.Decrypt(env.EncryptedDek, env.DekIV)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := cryptoService.NewAESGCM(dek)
	if err != nil {
		return nil, err
	}

	return dataCipher.Decrypt(env.Ciphertext, env.DataIV)
}

// Rewrap re-encrypts an envelope under a new key without exposing the
// plaintext beyond the local stack.
func (c *cryptoUseCase) Rewrap(
	envelope string,
	oldKey, newKey []byte,
	newKeyID string,
) (string, error) {
	plaintext, err := c.DecryptWithKey(envelope, oldKey)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(plaintext)

	return c.EncryptWithKey(plaintext, newKeyID, newKey)
}

// ExtractKeyID parses the envelope header only.
func (c *cryptoUseCase) ExtractKeyID(envelope string) (string, error) {
	return cryptoService.ExtractKeyID(envelope)
}

// GenerateDataKey returns 32 random bytes.
func (c *cryptoUseCase) GenerateDataKey() ([]byte, error) {
	return cryptoService.GenerateDataKey()
}

// GenerateAndWrapDataKey returns a fresh data key as base64 plaintext plus an
// envelope of that key under the secret-storage KEK.
func (c *cryptoUseCase) GenerateAndWrapDataKey() (string, string, error) {
	dek, err := cryptoService.GenerateDataKey()
	if err != nil {
		return "", "", err
	}
	defer cryptoDomain.Zero(dek)

	wrapped, err := c.Encrypt(dek)
	if err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(dek), wrapped, nil
}

// GenerateRandomString draws length characters from the resolved charset.
func (c *cryptoUseCase) GenerateRandomString(length int, charset string) (string, error) {
	return cryptoService.GenerateRandomString(length, charset)
}

// Hash returns the hex SHA-256 digest of the input string.
func (c *cryptoUseCase) Hash(s string) string {
	digest := sha256.Sum256([]byte(s))
	return hex.EncodeToString(digest[:])
}
