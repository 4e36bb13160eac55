// Package usecase implements the seal/unseal state machine guarding every
// data-plane operation. The vault starts sealed; operators submit key shares
// until the threshold is met and the reconstructed key verifies against the
// configured master key.
package usecase

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	apperrors "github.com/allisson/vault/internal/errors"
	sealDomain "github.com/allisson/vault/internal/seal/domain"
	sealService "github.com/allisson/vault/internal/seal/service"
)

// SealUseCase is the seal state machine. All transitions are mutually
// exclusive; Status and RequireUnsealed observe a consistent snapshot.
type SealUseCase interface {
	// Status returns a snapshot of the seal state.
	Status() sealDomain.Status

	// RequireUnsealed fails with ErrSealed unless the state is UNSEALED.
	// This is the gate every data-plane operation passes through.
	RequireUnsealed() error

	// SubmitKeyShare accepts a base64 share (index byte prepended) and
	// advances the state machine. When the threshold is reached the collected
	// shares are combined and verified against the configured master key; on
	// mismatch all shares are discarded and the state reverts to SEALED.
	SubmitKeyShare(share string) (sealDomain.Status, error)

	// Seal transitions UNSEALED to SEALED and clears collected shares.
	Seal() error

	// GenerateKeyShares splits the current master key into n base64 shares
	// with threshold m. Requires the UNSEALED state.
	GenerateKeyShares(n, m int) ([]string, error)
}

// Config holds seal configuration.
type Config struct {
	// AutoUnseal transitions directly to UNSEALED at startup without
	// collecting shares. Development only; production must set it off.
	AutoUnseal bool
	// TotalShares is the configured share count N.
	TotalShares int
	// Threshold is the configured threshold M.
	Threshold int
}

// sealUseCase implements SealUseCase with a single mutex around all state.
type sealUseCase struct {
	config    Config
	masterKey *cryptoDomain.MasterKey
	logger    *slog.Logger

	mu         sync.Mutex
	state      sealDomain.State
	shares     [][]byte
	indices    []int
	unsealedAt *time.Time
}

// NewSealUseCase creates the seal state machine. With auto-unseal enabled the
// vault starts UNSEALED; otherwise it starts SEALED.
func NewSealUseCase(
	config Config,
	masterKey *cryptoDomain.MasterKey,
	logger *slog.Logger,
) SealUseCase {
	uc := &sealUseCase{
		config:    config,
		masterKey: masterKey,
		logger:    logger,
		state:     sealDomain.StateSealed,
	}

	if config.AutoUnseal {
		now := time.Now().UTC()
		uc.state = sealDomain.StateUnsealed
		uc.unsealedAt = &now
		if logger != nil {
			logger.Warn("auto-unseal enabled, vault started unsealed")
		}
	}

	return uc
}

// Status returns a consistent snapshot of the seal state.
func (s *sealUseCase) Status() sealDomain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sealDomain.Status{
		State:           s.state,
		TotalShares:     s.config.TotalShares,
		Threshold:       s.config.Threshold,
		CollectedShares: len(s.shares),
		UnsealedAt:      s.unsealedAt,
	}
}

// RequireUnsealed fails with ErrSealed unless the state is UNSEALED.
func (s *sealUseCase) RequireUnsealed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != sealDomain.StateUnsealed {
		return apperrors.ErrSealed
	}
	return nil
}

// SubmitKeyShare accepts one share and advances the state machine.
func (s *sealUseCase) SubmitKeyShare(share string) (sealDomain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == sealDomain.StateUnsealed {
		return s.statusLocked(), sealDomain.ErrAlreadyUnsealed
	}

	raw, err := base64.StdEncoding.DecodeString(share)
	if err != nil {
		return s.statusLocked(), fmt.Errorf("%w: invalid base64", sealDomain.ErrInvalidKeyShare)
	}
	if len(raw) < 2 {
		return s.statusLocked(), fmt.Errorf("%w: share too short", sealDomain.ErrInvalidKeyShare)
	}

	index := int(raw[0])
	if index < 1 {
		return s.statusLocked(), fmt.Errorf("%w: index must be 1-based", sealDomain.ErrInvalidKeyShare)
	}
	for _, existing := range s.indices {
		if existing == index {
			return s.statusLocked(), fmt.Errorf(
				"%w: share %d already submitted",
				sealDomain.ErrInvalidKeyShare, index,
			)
		}
	}

	body := make([]byte, len(raw)-1)
	copy(body, raw[1:])
	s.shares = append(s.shares, body)
	s.indices = append(s.indices, index)
	s.state = sealDomain.StateUnsealing

	if len(s.shares) < s.config.Threshold {
		return s.statusLocked(), nil
	}

	// Threshold reached: reconstruct and verify against the configured key.
	reconstructed, err := sealService.Combine(s.shares, s.indices)
	if err == nil {
		defer cryptoDomain.Zero(reconstructed)
	}
	if err != nil || subtle.ConstantTimeCompare(reconstructed, s.masterKey.Bytes()) != 1 {
		s.discardSharesLocked()
		s.state = sealDomain.StateSealed
		if s.logger != nil {
			s.logger.Warn("unseal verification failed, shares discarded")
		}
		return s.statusLocked(), apperrors.ErrUnsealVerifyFailed
	}

	now := time.Now().UTC()
	s.state = sealDomain.StateUnsealed
	s.unsealedAt = &now
	s.discardSharesLocked()
	if s.logger != nil {
		s.logger.Info("vault unsealed", slog.Time("unsealed_at", now))
	}

	return s.statusLocked(), nil
}

// Seal transitions UNSEALED to SEALED and clears collected shares.
func (s *sealUseCase) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == sealDomain.StateSealed {
		return sealDomain.ErrAlreadySealed
	}

	s.state = sealDomain.StateSealed
	s.discardSharesLocked()
	if s.logger != nil {
		s.logger.Info("vault sealed")
	}

	return nil
}

// GenerateKeyShares splits the current master key into n shares with
// threshold m, each serialised as base64 of indexByte || shareBytes.
func (s *sealUseCase) GenerateKeyShares(n, m int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != sealDomain.StateUnsealed {
		return nil, apperrors.ErrSealed
	}

	shares, err := sealService.Split(s.masterKey.Bytes(), n, m)
	if err != nil {
		return nil, err
	}

	encoded := make([]string, len(shares))
	for i, share := range shares {
		raw := make([]byte, 0, len(share)+1)
		raw = append(raw, byte(i+1))
		raw = append(raw, share...)
		encoded[i] = base64.StdEncoding.EncodeToString(raw)
		cryptoDomain.Zero(share)
		cryptoDomain.Zero(raw)
	}

	return encoded, nil
}

// statusLocked builds a Status snapshot. Callers must hold the mutex.
func (s *sealUseCase) statusLocked() sealDomain.Status {
	return sealDomain.Status{
		State:           s.state,
		TotalShares:     s.config.TotalShares,
		Threshold:       s.config.Threshold,
		CollectedShares: len(s.shares),
		UnsealedAt:      s.unsealedAt,
	}
}

// discardSharesLocked zeroes and drops all collected shares.
func (s *sealUseCase) discardSharesLocked() {
	for _, share := range s.shares {
		cryptoDomain.Zero(share)
	}
	s.shares = nil
	s.indices = nil
}
