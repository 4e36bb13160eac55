package app

import (
	"fmt"

	rotationHTTP "github.com/allisson/vault/internal/rotation/http"
	rotationRepository "github.com/allisson/vault/internal/rotation/repository"
	rotationUsecase "github.com/allisson/vault/internal/rotation/usecase"
)

// RotationPolicyRepository returns the rotation policy repository instance.
func (c *Container) RotationPolicyRepository() (rotationUsecase.RotationPolicyRepository, error) {
	var err error
	c.rotationPolicyRepoInit.Do(func() {
		c.rotationPolicyRepo, err = c.initRotationPolicyRepository()
		if err != nil {
			c.initErrors["rotationPolicyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationPolicyRepo"]; exists {
		return nil, storedErr
	}
	return c.rotationPolicyRepo, nil
}

// RotationHistoryRepository returns the rotation history repository instance.
func (c *Container) RotationHistoryRepository() (rotationUsecase.RotationHistoryRepository, error) {
	var err error
	c.rotationHistoryRepoInit.Do(func() {
		c.rotationHistoryRepo, err = c.initRotationHistoryRepository()
		if err != nil {
			c.initErrors["rotationHistoryRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationHistoryRepo"]; exists {
		return nil, storedErr
	}
	return c.rotationHistoryRepo, nil
}

// RotationUseCase returns the rotation use case instance.
func (c *Container) RotationUseCase() (rotationUsecase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

// RotationHandler returns the rotation HTTP handler.
func (c *Container) RotationHandler() (*rotationHTTP.RotationHandler, error) {
	rotationUseCase, err := c.RotationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation use case for rotation handler: %w", err)
	}
	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for rotation handler: %w", err)
	}
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for rotation handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for rotation handler: %w", err)
	}
	return rotationHTTP.NewRotationHandler(rotationUseCase, secretUseCase, policyUseCase, auditUseCase, c.Logger()), nil
}

// initRotationPolicyRepository creates the rotation policy repository instance.
func (c *Container) initRotationPolicyRepository() (rotationUsecase.RotationPolicyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rotation policy repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return rotationRepository.NewPostgreSQLRotationPolicyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRotationHistoryRepository creates the rotation history repository instance.
func (c *Container) initRotationHistoryRepository() (rotationUsecase.RotationHistoryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rotation history repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return rotationRepository.NewPostgreSQLRotationHistoryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRotationUseCase creates the rotation use case with all its dependencies.
func (c *Container) initRotationUseCase() (rotationUsecase.RotationUseCase, error) {
	policyRepo, err := c.RotationPolicyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation policy repository for rotation use case: %w", err)
	}
	historyRepo, err := c.RotationHistoryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation history repository for rotation use case: %w", err)
	}
	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for rotation use case: %w", err)
	}
	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for rotation use case: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for rotation use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
	}

	useCase := rotationUsecase.NewRotationUseCase(
		rotationUsecase.Config{
			TickInterval:       c.config.RotationTickInterval,
			ExternalAPITimeout: c.config.RotationExternalAPITimeout,
		},
		policyRepo,
		historyRepo,
		secretUseCase,
		cryptoUseCase,
		auditUseCase,
		c.Logger(),
	)
	return rotationUsecase.NewRotationUseCaseWithMetrics(useCase, businessMetrics), nil
}
