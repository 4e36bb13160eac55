package app

import (
	"fmt"

	leaseHTTP "github.com/allisson/vault/internal/lease/http"
	leaseRepository "github.com/allisson/vault/internal/lease/repository"
	leaseService "github.com/allisson/vault/internal/lease/service"
	leaseUsecase "github.com/allisson/vault/internal/lease/usecase"
)

// LeaseRepository returns the dynamic lease repository instance.
func (c *Container) LeaseRepository() (leaseUsecase.LeaseRepository, error) {
	var err error
	c.leaseRepoInit.Do(func() {
		c.leaseRepo, err = c.initLeaseRepository()
		if err != nil {
			c.initErrors["leaseRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseRepo"]; exists {
		return nil, storedErr
	}
	return c.leaseRepo, nil
}

// LeaseUseCase returns the dynamic lease use case instance.
func (c *Container) LeaseUseCase() (leaseUsecase.LeaseUseCase, error) {
	var err error
	c.leaseUseCaseInit.Do(func() {
		c.leaseUseCase, err = c.initLeaseUseCase()
		if err != nil {
			c.initErrors["leaseUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseUseCase"]; exists {
		return nil, storedErr
	}
	return c.leaseUseCase, nil
}

// LeaseHandler returns the dynamic lease HTTP handler.
func (c *Container) LeaseHandler() (*leaseHTTP.LeaseHandler, error) {
	leaseUseCase, err := c.LeaseUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease use case for lease handler: %w", err)
	}
	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for lease handler: %w", err)
	}
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for lease handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for lease handler: %w", err)
	}
	return leaseHTTP.NewLeaseHandler(leaseUseCase, secretUseCase, policyUseCase, auditUseCase, c.Logger()), nil
}

// initLeaseRepository creates the dynamic lease repository instance.
func (c *Container) initLeaseRepository() (leaseUsecase.LeaseRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for lease repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return leaseRepository.NewPostgreSQLLeaseRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initLeaseUseCase creates the lease use case with all its dependencies.
func (c *Container) initLeaseUseCase() (leaseUsecase.LeaseUseCase, error) {
	leaseRepo, err := c.LeaseRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease repository for lease use case: %w", err)
	}
	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for lease use case: %w", err)
	}
	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for lease use case: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for lease use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for lease use case: %w", err)
	}

	useCase := leaseUsecase.NewLeaseUseCase(
		leaseUsecase.Config{
			ExecuteSQL:        c.config.LeaseExecuteSQL,
			DefaultTTLSeconds: c.config.LeaseDefaultTTLSeconds,
			MaxTTLSeconds:     c.config.LeaseMaxTTLSeconds,
			PasswordLength:    c.config.LeasePasswordLength,
			UsernamePrefix:    c.config.LeaseUsernamePrefix,
			SweepInterval:     c.config.LeaseSweepInterval,
		},
		leaseRepo,
		secretUseCase,
		cryptoUseCase,
		leaseService.NewSQLProvisioner(),
		auditUseCase,
		c.Logger(),
	)
	return leaseUsecase.NewLeaseUseCaseWithMetrics(useCase, businessMetrics), nil
}
