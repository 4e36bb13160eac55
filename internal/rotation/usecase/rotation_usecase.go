package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// Config holds rotation use case configuration.
type Config struct {
	// TickInterval is the delay between due-rotation scans.
	TickInterval time.Duration
	// ExternalAPITimeout bounds the HTTP call of EXTERNAL_API rotations.
	ExternalAPITimeout time.Duration
}

const (
	defaultTickInterval       = 60 * time.Second
	defaultExternalAPITimeout = 30 * time.Second
)

// rotationUseCase implements the RotationUseCase interface.
type rotationUseCase struct {
	config      Config
	policyRepo  RotationPolicyRepository
	historyRepo RotationHistoryRepository
	secrets     SecretManager
	crypto      cryptoUsecase.CryptoUseCase
	audit       auditUsecase.AuditUseCase
	httpClient  *http.Client
	logger      *slog.Logger
}

// CreatePolicy attaches a rotation policy to a secret.
func (r *rotationUseCase) CreatePolicy(
	ctx context.Context,
	input rotationDomain.CreateRotationPolicyInput,
) (*rotationDomain.RotationPolicy, error) {
	if err := validateStrategy(input.Strategy); err != nil {
		return nil, err
	}
	if input.IntervalHours < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "interval hours must be at least 1")
	}
	if input.Strategy == rotationDomain.StrategyExternalAPI && input.ExternalAPIURL == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "external api url is required")
	}
	if input.RandomLength != nil && *input.RandomLength < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "random length must be at least 1")
	}

	if _, err := r.secrets.Get(ctx, input.SecretID); err != nil {
		return nil, err
	}

	existing, err := r.policyRepo.GetBySecretID(ctx, input.SecretID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, rotationDomain.ErrRotationPolicyAlreadyExists
	}

	now := time.Now().UTC()
	policy := &rotationDomain.RotationPolicy{
		ID:                 uuid.Must(uuid.NewV7()),
		SecretID:           input.SecretID,
		Strategy:           input.Strategy,
		IntervalHours:      input.IntervalHours,
		RandomLength:       input.RandomLength,
		RandomCharset:      input.RandomCharset,
		ExternalAPIURL:     input.ExternalAPIURL,
		ExternalAPIHeaders: input.ExternalAPIHeaders,
		ScriptCommand:      input.ScriptCommand,
		IsActive:           true,
		MaxFailures:        input.MaxFailures,
		NextRotationAt:     now.Add(time.Duration(input.IntervalHours) * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := r.policyRepo.Create(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// GetPolicyBySecret retrieves the rotation policy of a secret.
func (r *rotationUseCase) GetPolicyBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) (*rotationDomain.RotationPolicy, error) {
	return r.policyRepo.GetBySecretID(ctx, secretID)
}

// UpdatePolicy applies a partial update to a rotation policy.
func (r *rotationUseCase) UpdatePolicy(
	ctx context.Context,
	policyID uuid.UUID,
	input rotationDomain.UpdateRotationPolicyInput,
) (*rotationDomain.RotationPolicy, error) {
	policy, err := r.policyRepo.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	if input.Strategy != nil {
		if err := validateStrategy(*input.Strategy); err != nil {
			return nil, err
		}
		policy.Strategy = *input.Strategy
	}
	if input.IntervalHours != nil {
		if *input.IntervalHours < 1 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "interval hours must be at least 1")
		}
		policy.IntervalHours = *input.IntervalHours
	}
	if input.RandomLength != nil {
		if *input.RandomLength < 1 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "random length must be at least 1")
		}
		policy.RandomLength = input.RandomLength
	}
	if input.RandomCharset != nil {
		policy.RandomCharset = input.RandomCharset
	}
	if input.ExternalAPIURL != nil {
		policy.ExternalAPIURL = input.ExternalAPIURL
	}
	if input.ExternalAPIHeaders != nil {
		policy.ExternalAPIHeaders = input.ExternalAPIHeaders
	}
	if input.ScriptCommand != nil {
		policy.ScriptCommand = input.ScriptCommand
	}
	if input.MaxFailures != nil {
		policy.MaxFailures = input.MaxFailures
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
		if policy.IsActive {
			policy.FailureCount = 0
		}
	}
	policy.UpdatedAt = time.Now().UTC()

	if err := r.policyRepo.Update(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// DeletePolicy removes a rotation policy.
func (r *rotationUseCase) DeletePolicy(ctx context.Context, policyID uuid.UUID) error {
	if _, err := r.policyRepo.GetByID(ctx, policyID); err != nil {
		return err
	}
	return r.policyRepo.Delete(ctx, policyID)
}

// RotateSecret rotates one secret now.
func (r *rotationUseCase) RotateSecret(
	ctx context.Context,
	secretID uuid.UUID,
	triggeredBy *uuid.UUID,
) (*rotationDomain.RotationHistory, error) {
	policy, err := r.policyRepo.GetBySecretID(ctx, secretID)
	if err != nil {
		return nil, err
	}
	return r.rotateOne(ctx, policy, triggeredBy)
}

// RotateDue rotates every due policy, isolating failures per policy.
func (r *rotationUseCase) RotateDue(ctx context.Context) error {
	policies, err := r.policyRepo.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, policy := range policies {
		if _, err := r.rotateOne(ctx, policy, nil); err != nil {
			r.logger.Error("scheduled rotation failed",
				slog.String("policy_id", policy.ID.String()),
				slog.String("secret_id", policy.SecretID.String()),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// ListHistory retrieves rotation attempts of a secret.
func (r *rotationUseCase) ListHistory(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*rotationDomain.RotationHistory, error) {
	return r.historyRepo.ListBySecret(ctx, secretID, offset, limit)
}

// Start runs the due-rotation scheduler loop. The tick body runs inline, so a
// slow scan delays the next tick instead of overlapping it.
func (r *rotationUseCase) Start(ctx context.Context) error {
	r.logger.Info("starting rotation scheduler",
		slog.Duration("tick_interval", r.config.TickInterval),
	)

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping rotation scheduler")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RotateDue(ctx); err != nil {
				r.logger.Error("rotation tick failed", slog.Any("error", err))
			}
		}
	}
}

// rotateOne executes the rotate flow for one policy and records the outcome
// in rotation history, on the policy counters and in the audit trail.
func (r *rotationUseCase) rotateOne(
	ctx context.Context,
	policy *rotationDomain.RotationPolicy,
	triggeredBy *uuid.UUID,
) (*rotationDomain.RotationHistory, error) {
	secret, err := r.secrets.Get(ctx, policy.SecretID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	previousVersion := secret.CurrentVersion

	value, err := r.generateValue(ctx, policy)
	if err == nil {
		changeDescription := fmt.Sprintf("Rotated by %s", policy.Strategy)
		updatedBy := uuid.Nil
		if triggeredBy != nil {
			updatedBy = *triggeredBy
		}
		_, err = r.secrets.Update(ctx, secret.TeamID, secret.Path, secretsDomain.UpdateSecretInput{
			Value:             value,
			ChangeDescription: &changeDescription,
			UpdatedByUserID:   updatedBy,
		})
	}

	var newVersion *uint
	if err == nil {
		reloaded, reloadErr := r.secrets.Get(ctx, policy.SecretID)
		if reloadErr != nil {
			err = reloadErr
		} else {
			newVersion = &reloaded.CurrentVersion
		}
	}

	now := time.Now().UTC()
	history := &rotationDomain.RotationHistory{
		ID:                uuid.Must(uuid.NewV7()),
		SecretID:          secret.ID,
		Path:              secret.Path,
		Strategy:          policy.Strategy,
		PreviousVersion:   previousVersion,
		NewVersion:        newVersion,
		Success:           err == nil,
		DurationMs:        time.Since(start).Milliseconds(),
		TriggeredByUserID: triggeredBy,
		CreatedAt:         now,
	}
	if err != nil {
		message := err.Error()
		history.ErrorMessage = &message
	}
	if createErr := r.historyRepo.Create(ctx, history); createErr != nil {
		r.logger.Error("failed to record rotation history",
			slog.String("secret_id", secret.ID.String()),
			slog.Any("error", createErr),
		)
	}

	// The next rotation time always advances, success or not, so a broken
	// policy cannot cause a retry storm.
	policy.NextRotationAt = now.Add(policy.Interval())
	if err == nil {
		policy.LastRotatedAt = &now
		policy.FailureCount = 0
	} else {
		policy.FailureCount++
		if policy.MaxFailures != nil && policy.FailureCount >= *policy.MaxFailures {
			policy.IsActive = false
			r.logger.Warn("rotation policy deactivated after repeated failures",
				slog.String("policy_id", policy.ID.String()),
				slog.Int("failure_count", policy.FailureCount),
			)
		}
	}
	policy.UpdatedAt = now
	if updateErr := r.policyRepo.Update(ctx, policy); updateErr != nil {
		r.logger.Error("failed to update rotation policy",
			slog.String("policy_id", policy.ID.String()),
			slog.Any("error", updateErr),
		)
	}

	if err == nil {
		if markErr := r.secrets.MarkRotated(ctx, secret.ID); markErr != nil {
			r.logger.Error("failed to stamp secret rotation time",
				slog.String("secret_id", secret.ID.String()),
				slog.Any("error", markErr),
			)
		}
	}

	r.recordAudit(ctx, secret, triggeredBy, err)

	return history, err
}

// generateValue produces the new secret value for the policy strategy.
func (r *rotationUseCase) generateValue(
	ctx context.Context,
	policy *rotationDomain.RotationPolicy,
) (string, error) {
	switch policy.Strategy {
	case rotationDomain.StrategyRandomGenerate:
		length := rotationDomain.DefaultRandomLength
		if policy.RandomLength != nil {
			length = *policy.RandomLength
		}
		charset := rotationDomain.DefaultRandomCharset
		if policy.RandomCharset != nil {
			charset = *policy.RandomCharset
		}
		return r.crypto.GenerateRandomString(length, charset)
	case rotationDomain.StrategyExternalAPI:
		return r.fetchExternalValue(ctx, policy)
	case rotationDomain.StrategyCustomScript:
		return "", apperrors.Wrap(apperrors.ErrNotImplemented, "custom script rotation is not yet implemented")
	default:
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "unknown rotation strategy")
	}
}

// fetchExternalValue performs the EXTERNAL_API GET. Any 2xx response with a
// non-blank body is the new value; everything else is a rotation failure.
func (r *rotationUseCase) fetchExternalValue(
	ctx context.Context,
	policy *rotationDomain.RotationPolicy,
) (string, error) {
	if policy.ExternalAPIURL == nil {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed, "external api url is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.ExternalAPITimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, *policy.ExternalAPIURL, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed, err.Error())
	}

	if policy.ExternalAPIHeaders != nil {
		var headers map[string]string
		if err := json.Unmarshal([]byte(*policy.ExternalAPIHeaders), &headers); err != nil {
			return "", apperrors.Wrap(apperrors.ErrRotationFailed, "invalid external api headers json")
		}
		for name, value := range headers {
			request.Header.Set(name, value)
		}
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed, err.Error())
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed,
			fmt.Sprintf("external api returned status %d", response.StatusCode))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed, err.Error())
	}
	value := string(body)
	if strings.TrimSpace(value) == "" {
		return "", apperrors.Wrap(apperrors.ErrRotationFailed, "external api returned an empty body")
	}
	return value, nil
}

func (r *rotationUseCase) recordAudit(
	ctx context.Context,
	secret *secretsDomain.Secret,
	triggeredBy *uuid.UUID,
	rotationErr error,
) {
	resourceType := "secret"
	resourceID := secret.ID.String()
	record := auditDomain.Record{
		TeamID:       &secret.TeamID,
		UserID:       triggeredBy,
		Operation:    "rotation_rotate",
		Path:         &secret.Path,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		Success:      rotationErr == nil,
	}
	if rotationErr != nil {
		message := rotationErr.Error()
		record.ErrorMessage = &message
	}
	r.audit.Record(ctx, record)
}

func validateStrategy(strategy rotationDomain.Strategy) error {
	switch strategy {
	case rotationDomain.StrategyRandomGenerate,
		rotationDomain.StrategyExternalAPI,
		rotationDomain.StrategyCustomScript:
		return nil
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown rotation strategy")
	}
}

// NewRotationUseCase creates a new rotation use case instance with the provided dependencies.
func NewRotationUseCase(
	config Config,
	policyRepo RotationPolicyRepository,
	historyRepo RotationHistoryRepository,
	secrets SecretManager,
	crypto cryptoUsecase.CryptoUseCase,
	audit auditUsecase.AuditUseCase,
	logger *slog.Logger,
) RotationUseCase {
	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}
	if config.ExternalAPITimeout <= 0 {
		config.ExternalAPITimeout = defaultExternalAPITimeout
	}
	return &rotationUseCase{
		config:      config,
		policyRepo:  policyRepo,
		historyRepo: historyRepo,
		secrets:     secrets,
		crypto:      crypto,
		audit:       audit,
		httpClient:  &http.Client{Timeout: config.ExternalAPITimeout},
		logger:      logger,
	}
}
