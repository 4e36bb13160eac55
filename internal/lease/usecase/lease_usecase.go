package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	leaseDomain "github.com/allisson/vault/internal/lease/domain"
	leaseService "github.com/allisson/vault/internal/lease/service"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
)

// Config holds lease use case configuration.
type Config struct {
	// ExecuteSQL enables real user provisioning on target databases.
	ExecuteSQL bool
	// DefaultTTLSeconds applies when a request omits the TTL.
	DefaultTTLSeconds int
	// MaxTTLSeconds caps the requested TTL.
	MaxTTLSeconds int
	// PasswordLength is the generated credential password length.
	PasswordLength int
	// UsernamePrefix prefixes every generated backend username.
	UsernamePrefix string
	// SweepInterval is the delay between expiry scans.
	SweepInterval time.Duration
}

const (
	defaultTTLSeconds    = 3600
	defaultMaxTTLSeconds = 86400
	defaultPasswordLen   = 32
	defaultSweepInterval = 30 * time.Second
)

// leaseMetadata is the unencrypted annotation persisted on the lease. It
// mirrors the credential map minus the password.
type leaseMetadata struct {
	Host        string `json:"host"`
	Port        string `json:"port"`
	Database    string `json:"database"`
	Username    string `json:"username"`
	BackendType string `json:"backend_type"`
}

// leaseUseCase implements the LeaseUseCase interface.
type leaseUseCase struct {
	config      Config
	leaseRepo   LeaseRepository
	secrets     SecretSource
	crypto      cryptoUsecase.CryptoUseCase
	provisioner leaseService.Provisioner
	audit       auditUsecase.AuditUseCase
	logger      *slog.Logger
}

// CreateLease issues credentials from a DYNAMIC secret.
func (l *leaseUseCase) CreateLease(
	ctx context.Context,
	input leaseDomain.CreateLeaseInput,
) (*leaseDomain.CreateLeaseResult, error) {
	result, secret, err := l.createLease(ctx, input)
	l.recordAudit(ctx, "lease_create", secret, resultLeaseID(result), &input.RequestedByUserID, err)
	return result, err
}

func (l *leaseUseCase) createLease(
	ctx context.Context,
	input leaseDomain.CreateLeaseInput,
) (*leaseDomain.CreateLeaseResult, *secretsDomain.Secret, error) {
	secret, err := l.secrets.GetByPath(ctx, input.TeamID, input.Path)
	if err != nil {
		return nil, nil, err
	}
	if secret.Type != secretsDomain.SecretTypeDynamic {
		return nil, secret, leaseDomain.ErrNotDynamicSecret
	}

	metadata, err := l.secrets.GetMetadata(ctx, secret.ID)
	if err != nil {
		return nil, secret, err
	}
	backendConfig, err := backendConfigFromMetadata(metadata)
	if err != nil {
		return nil, secret, err
	}

	ttl := input.TTLSeconds
	if ttl == 0 {
		ttl = l.config.DefaultTTLSeconds
	}
	if ttl < 0 {
		return nil, secret, apperrors.Wrap(apperrors.ErrInvalidInput, "ttl must be positive")
	}
	if ttl > l.config.MaxTTLSeconds {
		return nil, secret, apperrors.Wrap(apperrors.ErrInvalidInput, "ttl exceeds the configured maximum")
	}

	username := leaseService.GenerateUsername(l.config.UsernamePrefix, secret.Name)
	password, err := l.crypto.GenerateRandomString(l.config.PasswordLength, "alphanumeric")
	if err != nil {
		return nil, secret, err
	}

	if l.config.ExecuteSQL {
		if err := l.provisioner.CreateUser(ctx, *backendConfig, username, password); err != nil {
			return nil, secret, err
		}
	}

	credentials := &leaseDomain.Credentials{
		Username:    username,
		Password:    password,
		Host:        backendConfig.Host,
		Port:        backendConfig.Port,
		Database:    backendConfig.Database,
		BackendType: backendConfig.BackendType,
	}
	credentialsJSON, err := json.Marshal(credentials)
	if err != nil {
		return nil, secret, apperrors.Wrap(err, "failed to serialize credentials")
	}
	encrypted, err := l.crypto.EncryptWithPurpose(credentialsJSON, cryptoDomain.PurposeDynamicCredentials)
	if err != nil {
		return nil, secret, err
	}

	metadataJSON, err := json.Marshal(leaseMetadata{
		Host:        backendConfig.Host,
		Port:        backendConfig.Port,
		Database:    backendConfig.Database,
		Username:    username,
		BackendType: backendConfig.BackendType,
	})
	if err != nil {
		return nil, secret, apperrors.Wrap(err, "failed to serialize lease metadata")
	}

	now := time.Now().UTC()
	lease := &leaseDomain.DynamicLease{
		ID:                   fmt.Sprintf("lease-%s", uuid.Must(uuid.NewV7())),
		SecretID:             secret.ID,
		SecretPath:           secret.Path,
		BackendType:          backendConfig.BackendType,
		EncryptedCredentials: encrypted,
		Status:               leaseDomain.LeaseStatusActive,
		TTLSeconds:           ttl,
		ExpiresAt:            now.Add(time.Duration(ttl) * time.Second),
		RequestedByUserID:    input.RequestedByUserID,
		Metadata:             string(metadataJSON),
		CreatedAt:            now,
	}
	if err := l.leaseRepo.Create(ctx, lease); err != nil {
		return nil, secret, err
	}

	return &leaseDomain.CreateLeaseResult{Lease: lease, Credentials: credentials}, secret, nil
}

// GetLease retrieves lease metadata.
func (l *leaseUseCase) GetLease(ctx context.Context, leaseID string) (*leaseDomain.DynamicLease, error) {
	return l.leaseRepo.GetByID(ctx, leaseID)
}

// ListLeases retrieves leases of a secret.
func (l *leaseUseCase) ListLeases(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*leaseDomain.DynamicLease, error) {
	return l.leaseRepo.ListBySecret(ctx, secretID, offset, limit)
}

// RevokeLease revokes one ACTIVE lease. The audit entry is written without a
// team id, matching the historical behaviour of this path.
func (l *leaseUseCase) RevokeLease(
	ctx context.Context,
	leaseID string,
	revokedBy uuid.UUID,
) (*leaseDomain.DynamicLease, error) {
	lease, err := l.leaseRepo.GetByID(ctx, leaseID)
	if err != nil {
		l.recordAudit(ctx, "lease_revoke", nil, leaseID, &revokedBy, err)
		return nil, err
	}
	if lease.Status != leaseDomain.LeaseStatusActive {
		err := leaseDomain.ErrLeaseNotActive
		l.recordAudit(ctx, "lease_revoke", nil, leaseID, &revokedBy, err)
		return nil, err
	}

	l.dropBackendUser(ctx, lease)

	now := time.Now().UTC()
	lease.Status = leaseDomain.LeaseStatusRevoked
	lease.RevokedAt = &now
	lease.RevokedByUserID = &revokedBy
	if err := l.leaseRepo.Update(ctx, lease); err != nil {
		l.recordAudit(ctx, "lease_revoke", nil, leaseID, &revokedBy, err)
		return nil, err
	}

	l.recordAudit(ctx, "lease_revoke", nil, leaseID, &revokedBy, nil)
	return lease, nil
}

// RevokeAllLeases revokes every ACTIVE lease of a secret.
func (l *leaseUseCase) RevokeAllLeases(
	ctx context.Context,
	secretID uuid.UUID,
	revokedBy uuid.UUID,
) (int, error) {
	leases, err := l.leaseRepo.ListActiveBySecret(ctx, secretID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	now := time.Now().UTC()
	for _, lease := range leases {
		l.dropBackendUser(ctx, lease)

		lease.Status = leaseDomain.LeaseStatusRevoked
		lease.RevokedAt = &now
		lease.RevokedByUserID = &revokedBy
		if err := l.leaseRepo.Update(ctx, lease); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// ExpireLeases sweeps overdue ACTIVE leases to EXPIRED.
func (l *leaseUseCase) ExpireLeases(ctx context.Context) (int, error) {
	leases, err := l.leaseRepo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, lease := range leases {
		l.dropBackendUser(ctx, lease)

		lease.Status = leaseDomain.LeaseStatusExpired
		if err := l.leaseRepo.Update(ctx, lease); err != nil {
			l.logger.Error("failed to expire lease",
				slog.String("lease_id", lease.ID),
				slog.Any("error", err),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

// Start runs the expiry sweep loop. The sweep runs inline, so a slow run
// delays the next tick instead of overlapping it.
func (l *leaseUseCase) Start(ctx context.Context) error {
	l.logger.Info("starting lease expiry sweeper",
		slog.Duration("sweep_interval", l.config.SweepInterval),
	)

	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping lease expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			expired, err := l.ExpireLeases(ctx)
			if err != nil {
				l.logger.Error("lease expiry sweep failed", slog.Any("error", err))
				continue
			}
			if expired > 0 {
				l.logger.Info("expired leases", slog.Int("count", expired))
			}
		}
	}
}

// dropBackendUser removes the lease's backend user best-effort; every failure
// is logged and swallowed so teardown never blocks a revoke or expiry.
func (l *leaseUseCase) dropBackendUser(ctx context.Context, lease *leaseDomain.DynamicLease) {
	if !l.config.ExecuteSQL {
		return
	}

	var metadata leaseMetadata
	if err := json.Unmarshal([]byte(lease.Metadata), &metadata); err != nil {
		l.logger.Error("failed to parse lease metadata for teardown",
			slog.String("lease_id", lease.ID),
			slog.Any("error", err),
		)
		return
	}

	secret, err := l.secrets.Get(ctx, lease.SecretID)
	if err != nil {
		l.logger.Error("failed to load source secret for teardown",
			slog.String("lease_id", lease.ID),
			slog.Any("error", err),
		)
		return
	}
	secretMetadata, err := l.secrets.GetMetadata(ctx, secret.ID)
	if err != nil {
		l.logger.Error("failed to load secret metadata for teardown",
			slog.String("lease_id", lease.ID),
			slog.Any("error", err),
		)
		return
	}
	backendConfig, err := backendConfigFromMetadata(secretMetadata)
	if err != nil {
		l.logger.Error("invalid backend config for teardown",
			slog.String("lease_id", lease.ID),
			slog.Any("error", err),
		)
		return
	}

	if err := l.provisioner.DropUser(ctx, *backendConfig, metadata.Username); err != nil {
		l.logger.Error("failed to drop backend user",
			slog.String("lease_id", lease.ID),
			slog.String("username", metadata.Username),
			slog.Any("error", err),
		)
	}
}

func (l *leaseUseCase) recordAudit(
	ctx context.Context,
	operation string,
	secret *secretsDomain.Secret,
	leaseID string,
	userID *uuid.UUID,
	opErr error,
) {
	resourceType := "lease"
	record := auditDomain.Record{
		UserID:       userID,
		Operation:    operation,
		ResourceType: &resourceType,
		Success:      opErr == nil,
	}
	if secret != nil {
		record.TeamID = &secret.TeamID
		record.Path = &secret.Path
	}
	if leaseID != "" {
		record.ResourceID = &leaseID
	}
	if opErr != nil {
		message := opErr.Error()
		record.ErrorMessage = &message
	}
	l.audit.Record(ctx, record)
}

func resultLeaseID(result *leaseDomain.CreateLeaseResult) string {
	if result == nil || result.Lease == nil {
		return ""
	}
	return result.Lease.ID
}

// backendConfigFromMetadata validates and extracts the admin connection
// information from the dynamic secret's metadata.
func backendConfigFromMetadata(metadata map[string]string) (*leaseDomain.BackendConfig, error) {
	required := []string{"backendType", "host", "port", "database", "adminUser", "adminPassword"}
	values := make(map[string]string, len(required))
	for _, key := range required {
		value := strings.TrimSpace(metadata[key])
		if value == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput,
				fmt.Sprintf("dynamic secret metadata is missing %q", key))
		}
		values[key] = value
	}

	backendType := values["backendType"]
	if backendType != leaseDomain.BackendPostgreSQL && backendType != leaseDomain.BackendMySQL {
		return nil, leaseDomain.ErrUnsupportedBackend
	}

	return &leaseDomain.BackendConfig{
		BackendType:   backendType,
		Host:          values["host"],
		Port:          values["port"],
		Database:      values["database"],
		AdminUser:     values["adminUser"],
		AdminPassword: values["adminPassword"],
	}, nil
}

// NewLeaseUseCase creates a new lease use case instance with the provided dependencies.
func NewLeaseUseCase(
	config Config,
	leaseRepo LeaseRepository,
	secrets SecretSource,
	crypto cryptoUsecase.CryptoUseCase,
	provisioner leaseService.Provisioner,
	audit auditUsecase.AuditUseCase,
	logger *slog.Logger,
) LeaseUseCase {
	if config.DefaultTTLSeconds <= 0 {
		config.DefaultTTLSeconds = defaultTTLSeconds
	}
	if config.MaxTTLSeconds <= 0 {
		config.MaxTTLSeconds = defaultMaxTTLSeconds
	}
	if config.PasswordLength <= 0 {
		config.PasswordLength = defaultPasswordLen
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaultSweepInterval
	}
	return &leaseUseCase{
		config:      config,
		leaseRepo:   leaseRepo,
		secrets:     secrets,
		crypto:      crypto,
		provisioner: provisioner,
		audit:       audit,
		logger:      logger,
	}
}
