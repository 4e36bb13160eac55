package app

import (
	"fmt"

	policyHTTP "github.com/allisson/vault/internal/policy/http"
	policyRepository "github.com/allisson/vault/internal/policy/repository"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
)

// PolicyRepository returns the access policy repository instance.
func (c *Container) PolicyRepository() (policyUsecase.PolicyRepository, error) {
	var err error
	c.policyRepoInit.Do(func() {
		c.policyRepo, err = c.initPolicyRepository()
		if err != nil {
			c.initErrors["policyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["policyRepo"]; exists {
		return nil, storedErr
	}
	return c.policyRepo, nil
}

// BindingRepository returns the policy binding repository instance.
func (c *Container) BindingRepository() (policyUsecase.BindingRepository, error) {
	var err error
	c.bindingRepoInit.Do(func() {
		c.bindingRepo, err = c.initBindingRepository()
		if err != nil {
			c.initErrors["bindingRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["bindingRepo"]; exists {
		return nil, storedErr
	}
	return c.bindingRepo, nil
}

// PolicyUseCase returns the policy use case instance.
func (c *Container) PolicyUseCase() (policyUsecase.PolicyUseCase, error) {
	var err error
	c.policyUseCaseInit.Do(func() {
		c.policyUseCase, err = c.initPolicyUseCase()
		if err != nil {
			c.initErrors["policyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["policyUseCase"]; exists {
		return nil, storedErr
	}
	return c.policyUseCase, nil
}

// PolicyHandler returns the policy management HTTP handler.
func (c *Container) PolicyHandler() (*policyHTTP.PolicyHandler, error) {
	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for policy handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for policy handler: %w", err)
	}
	return policyHTTP.NewPolicyHandler(policyUseCase, auditUseCase, c.Logger()), nil
}

// initPolicyRepository creates the access policy repository instance.
func (c *Container) initPolicyRepository() (policyUsecase.PolicyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for policy repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return policyRepository.NewPostgreSQLPolicyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initBindingRepository creates the policy binding repository instance.
func (c *Container) initBindingRepository() (policyUsecase.BindingRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for binding repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return policyRepository.NewPostgreSQLBindingRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initPolicyUseCase creates the policy use case with all its dependencies.
func (c *Container) initPolicyUseCase() (policyUsecase.PolicyUseCase, error) {
	policyRepo, err := c.PolicyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy repository for policy use case: %w", err)
	}
	bindingRepo, err := c.BindingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get binding repository for policy use case: %w", err)
	}

	return policyUsecase.NewPolicyUseCase(policyRepo, bindingRepo), nil
}
