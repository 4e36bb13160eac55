package app

import (
	"fmt"

	transitHTTP "github.com/allisson/vault/internal/transit/http"
	transitRepository "github.com/allisson/vault/internal/transit/repository"
	transitUsecase "github.com/allisson/vault/internal/transit/usecase"
)

// TransitKeyRepository returns the transit key repository instance.
func (c *Container) TransitKeyRepository() (transitUsecase.TransitKeyRepository, error) {
	var err error
	c.transitKeyRepoInit.Do(func() {
		c.transitKeyRepo, err = c.initTransitKeyRepository()
		if err != nil {
			c.initErrors["transitKeyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["transitKeyRepo"]; exists {
		return nil, storedErr
	}
	return c.transitKeyRepo, nil
}

// TransitKeyUseCase returns the transit key use case instance.
func (c *Container) TransitKeyUseCase() (transitUsecase.TransitKeyUseCase, error) {
	var err error
	c.transitKeyUseCaseInit.Do(func() {
		c.transitKeyUseCase, err = c.initTransitKeyUseCase()
		if err != nil {
			c.initErrors["transitKeyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["transitKeyUseCase"]; exists {
		return nil, storedErr
	}
	return c.transitKeyUseCase, nil
}

// TransitKeyHandler returns the transit key management HTTP handler.
func (c *Container) TransitKeyHandler() (*transitHTTP.TransitKeyHandler, error) {
	transitKeyUseCase, err := c.TransitKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get transit key use case for transit key handler: %w", err)
	}
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for transit key handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for transit key handler: %w", err)
	}
	return transitHTTP.NewTransitKeyHandler(transitKeyUseCase, policyUseCase, auditUseCase, c.Logger()), nil
}

// CryptoHandler returns the transit encrypt/decrypt HTTP handler.
func (c *Container) CryptoHandler() (*transitHTTP.CryptoHandler, error) {
	transitKeyUseCase, err := c.TransitKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get transit key use case for crypto handler: %w", err)
	}
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for crypto handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for crypto handler: %w", err)
	}
	return transitHTTP.NewCryptoHandler(transitKeyUseCase, policyUseCase, auditUseCase, c.Logger()), nil
}

// initTransitKeyRepository creates the transit key repository instance.
func (c *Container) initTransitKeyRepository() (transitUsecase.TransitKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for transit key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return transitRepository.NewPostgreSQLTransitKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initTransitKeyUseCase creates the transit key use case with all its dependencies.
func (c *Container) initTransitKeyUseCase() (transitUsecase.TransitKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for transit key use case: %w", err)
	}
	transitKeyRepo, err := c.TransitKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get transit key repository for transit key use case: %w", err)
	}
	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for transit key use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for transit key use case: %w", err)
	}

	useCase := transitUsecase.NewTransitKeyUseCase(txManager, transitKeyRepo, cryptoUseCase)
	return transitUsecase.NewTransitKeyUseCaseWithMetrics(useCase, businessMetrics), nil
}
