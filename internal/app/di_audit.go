package app

import (
	"fmt"

	auditHTTP "github.com/allisson/vault/internal/audit/http"
	auditRepository "github.com/allisson/vault/internal/audit/repository"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
)

// AuditRepository returns the audit repository instance.
func (c *Container) AuditRepository() (auditUsecase.AuditRepository, error) {
	var err error
	c.auditRepoInit.Do(func() {
		c.auditRepo, err = c.initAuditRepository()
		if err != nil {
			c.initErrors["auditRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRepo"]; exists {
		return nil, storedErr
	}
	return c.auditRepo, nil
}

// AuditUseCase returns the audit use case instance.
func (c *Container) AuditUseCase() (auditUsecase.AuditUseCase, error) {
	var err error
	c.auditUseCaseInit.Do(func() {
		c.auditUseCase, err = c.initAuditUseCase()
		if err != nil {
			c.initErrors["auditUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditUseCase, nil
}

// AuditHandler returns the audit query HTTP handler.
func (c *Container) AuditHandler() (*auditHTTP.AuditHandler, error) {
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for audit handler: %w", err)
	}
	return auditHTTP.NewAuditHandler(auditUseCase, c.Logger()), nil
}

// initAuditRepository creates the audit repository instance.
func (c *Container) initAuditRepository() (auditUsecase.AuditRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return auditRepository.NewPostgreSQLAuditRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditUseCase creates the audit use case with all its dependencies.
func (c *Container) initAuditUseCase() (auditUsecase.AuditUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for audit use case: %w", err)
	}
	auditRepo, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for audit use case: %w", err)
	}

	return auditUsecase.NewAuditUseCase(txManager, auditRepo, c.Logger()), nil
}
