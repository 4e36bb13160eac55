package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoService "github.com/allisson/vault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
)

// MasterKey returns the root key material loaded from the KMS or, for
// development, from the MASTER_KEY environment variable.
func (c *Container) MasterKey() (*cryptoDomain.MasterKey, error) {
	var err error
	c.masterKeyInit.Do(func() {
		c.masterKey, err = c.initMasterKey()
		if err != nil {
			c.initErrors["masterKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["masterKey"]; exists {
		return nil, storedErr
	}
	return c.masterKey, nil
}

// CryptoUseCase returns the envelope encryption use case. Its constructor
// runs the mandatory startup self-test.
func (c *Container) CryptoUseCase() (cryptoUsecase.CryptoUseCase, error) {
	var err error
	c.cryptoUseCaseInit.Do(func() {
		c.cryptoUseCase, err = c.initCryptoUseCase()
		if err != nil {
			c.initErrors["cryptoUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoUseCase"]; exists {
		return nil, storedErr
	}
	return c.cryptoUseCase, nil
}

// initMasterKey loads the master key. A configured KMS key URI takes
// precedence; the plain MASTER_KEY variable is the development fallback.
func (c *Container) initMasterKey() (*cryptoDomain.MasterKey, error) {
	if c.config.KMSKeyURI != "" {
		if c.config.KMSMasterKeyCiphertext == "" {
			return nil, fmt.Errorf("KMS_KEY_URI is set but KMS_MASTER_KEY_CIPHERTEXT is empty")
		}
		masterKey, err := cryptoService.LoadMasterKeyFromKMS(
			context.Background(),
			c.config.KMSKeyURI,
			c.config.KMSMasterKeyCiphertext,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key from KMS: %w", err)
		}
		return masterKey, nil
	}

	if c.config.MasterKey == "" {
		return nil, fmt.Errorf("no master key configured: set MASTER_KEY or KMS_KEY_URI")
	}

	masterKey, err := cryptoDomain.NewMasterKeyFromBase64(c.config.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key from environment: %w", err)
	}
	return masterKey, nil
}

// initCryptoUseCase creates the crypto use case with the loaded master key.
func (c *Container) initCryptoUseCase() (cryptoUsecase.CryptoUseCase, error) {
	masterKey, err := c.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key for crypto use case: %w", err)
	}

	useCase, err := cryptoUsecase.NewCryptoUseCase(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto use case: %w", err)
	}
	return useCase, nil
}
