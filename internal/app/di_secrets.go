package app

import (
	"fmt"

	secretsRepository "github.com/allisson/vault/internal/secrets/repository"
	secretsHTTP "github.com/allisson/vault/internal/secrets/http"
	secretsUsecase "github.com/allisson/vault/internal/secrets/usecase"
)

// SecretRepository returns the secret repository instance.
func (c *Container) SecretRepository() (secretsUsecase.SecretRepository, error) {
	var err error
	c.secretRepoInit.Do(func() {
		c.secretRepo, err = c.initSecretRepository()
		if err != nil {
			c.initErrors["secretRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretRepo"]; exists {
		return nil, storedErr
	}
	return c.secretRepo, nil
}

// SecretVersionRepository returns the secret version repository instance.
func (c *Container) SecretVersionRepository() (secretsUsecase.SecretVersionRepository, error) {
	var err error
	c.secretVersionRepoInit.Do(func() {
		c.secretVersionRepo, err = c.initSecretVersionRepository()
		if err != nil {
			c.initErrors["secretVersionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretVersionRepo"]; exists {
		return nil, storedErr
	}
	return c.secretVersionRepo, nil
}

// SecretMetadataRepository returns the secret metadata repository instance.
func (c *Container) SecretMetadataRepository() (secretsUsecase.SecretMetadataRepository, error) {
	var err error
	c.secretMetadataRepoInit.Do(func() {
		c.secretMetadataRepo, err = c.initSecretMetadataRepository()
		if err != nil {
			c.initErrors["secretMetadataRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretMetadataRepo"]; exists {
		return nil, storedErr
	}
	return c.secretMetadataRepo, nil
}

// SecretUseCase returns the secret use case instance.
func (c *Container) SecretUseCase() (secretsUsecase.SecretUseCase, error) {
	var err error
	c.secretUseCaseInit.Do(func() {
		c.secretUseCase, err = c.initSecretUseCase()
		if err != nil {
			c.initErrors["secretUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretUseCase"]; exists {
		return nil, storedErr
	}
	return c.secretUseCase, nil
}

// SecretHandler returns the secrets HTTP handler.
func (c *Container) SecretHandler() (*secretsHTTP.SecretHandler, error) {
	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for secret handler: %w", err)
	}
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for secret handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for secret handler: %w", err)
	}
	return secretsHTTP.NewSecretHandler(secretUseCase, policyUseCase, auditUseCase, c.Logger()), nil
}

// initSecretRepository creates the secret repository instance.
func (c *Container) initSecretRepository() (secretsUsecase.SecretRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return secretsRepository.NewPostgreSQLSecretRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSecretVersionRepository creates the secret version repository instance.
func (c *Container) initSecretVersionRepository() (secretsUsecase.SecretVersionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret version repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return secretsRepository.NewPostgreSQLSecretVersionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSecretMetadataRepository creates the secret metadata repository instance.
func (c *Container) initSecretMetadataRepository() (secretsUsecase.SecretMetadataRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret metadata repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return secretsRepository.NewPostgreSQLSecretMetadataRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSecretUseCase creates the secret use case with all its dependencies.
func (c *Container) initSecretUseCase() (secretsUsecase.SecretUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret use case: %w", err)
	}
	secretRepo, err := c.SecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for secret use case: %w", err)
	}
	versionRepo, err := c.SecretVersionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret version repository for secret use case: %w", err)
	}
	metadataRepo, err := c.SecretMetadataRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret metadata repository for secret use case: %w", err)
	}
	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for secret use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for secret use case: %w", err)
	}

	useCase := secretsUsecase.NewSecretUseCase(txManager, secretRepo, versionRepo, metadataRepo, cryptoUseCase)
	return secretsUsecase.NewSecretUseCaseWithMetrics(useCase, businessMetrics), nil
}
