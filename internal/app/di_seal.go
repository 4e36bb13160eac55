package app

import (
	"fmt"

	sealHTTP "github.com/allisson/vault/internal/seal/http"
	sealUsecase "github.com/allisson/vault/internal/seal/usecase"
)

// SealUseCase returns the seal state machine.
func (c *Container) SealUseCase() (sealUsecase.SealUseCase, error) {
	var err error
	c.sealUseCaseInit.Do(func() {
		c.sealUseCase, err = c.initSealUseCase()
		if err != nil {
			c.initErrors["sealUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sealUseCase"]; exists {
		return nil, storedErr
	}
	return c.sealUseCase, nil
}

// SealHandler returns the seal HTTP handler.
func (c *Container) SealHandler() (*sealHTTP.SealHandler, error) {
	sealUseCase, err := c.SealUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal use case for seal handler: %w", err)
	}
	auditUseCase, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for seal handler: %w", err)
	}
	return sealHTTP.NewSealHandler(sealUseCase, auditUseCase, c.Logger()), nil
}

// initSealUseCase creates the seal state machine with the master key.
func (c *Container) initSealUseCase() (sealUsecase.SealUseCase, error) {
	masterKey, err := c.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key for seal use case: %w", err)
	}

	return sealUsecase.NewSealUseCase(
		sealUsecase.Config{
			AutoUnseal:  c.config.SealAutoUnseal,
			TotalShares: c.config.SealTotalShares,
			Threshold:   c.config.SealThreshold,
		},
		masterKey,
		c.Logger(),
	), nil
}
