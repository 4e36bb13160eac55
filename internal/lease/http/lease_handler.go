// Package http provides HTTP handlers for dynamic database leases.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	"github.com/allisson/vault/internal/httputil"
	leaseDomain "github.com/allisson/vault/internal/lease/domain"
	leaseUsecase "github.com/allisson/vault/internal/lease/usecase"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
	secretsUsecase "github.com/allisson/vault/internal/secrets/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// resourceTypeLease tags audit records emitted by this handler.
const resourceTypeLease = "dynamic_lease"

// LeaseHandler handles HTTP requests for dynamic lease issuance and revocation.
type LeaseHandler struct {
	leaseUseCase  leaseUsecase.LeaseUseCase
	secretUseCase secretsUsecase.SecretUseCase
	policyUseCase policyUsecase.PolicyUseCase
	auditUseCase  auditUsecase.AuditUseCase
	logger        *slog.Logger
}

// NewLeaseHandler creates a new lease handler with required dependencies.
func NewLeaseHandler(
	leaseUseCase leaseUsecase.LeaseUseCase,
	secretUseCase secretsUsecase.SecretUseCase,
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *LeaseHandler {
	return &LeaseHandler{
		leaseUseCase:  leaseUseCase,
		secretUseCase: secretUseCase,
		policyUseCase: policyUseCase,
		auditUseCase:  auditUseCase,
		logger:        logger,
	}
}

// CreateLeaseRequest contains the parameters for issuing a lease.
type CreateLeaseRequest struct {
	Path       string `json:"path"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Validate checks if the create lease request is valid.
func (r *CreateLeaseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required, customValidation.SecretPath),
		validation.Field(&r.TTLSeconds, validation.Min(0)),
	)
}

// LeaseResponse represents lease metadata in API responses.
// SECURITY: Credentials never appear here; they are returned exactly once
// by CreateLeaseResponse.
type LeaseResponse struct {
	ID                string  `json:"id"`
	SecretID          string  `json:"secret_id"`
	SecretPath        string  `json:"secret_path"`
	BackendType       string  `json:"backend_type"`
	Status            string  `json:"status"`
	TTLSeconds        int     `json:"ttl_seconds"`
	ExpiresAt         string  `json:"expires_at"`
	RevokedAt         *string `json:"revoked_at,omitempty"`
	RevokedByUserID   *string `json:"revoked_by_user_id,omitempty"`
	RequestedByUserID string  `json:"requested_by_user_id"`
	CreatedAt         string  `json:"created_at"`
}

// CredentialsResponse carries the one-time plaintext credentials.
type CredentialsResponse struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	Database    string `json:"database"`
	BackendType string `json:"backend_type"`
}

// CreateLeaseResponse pairs the lease with its one-time credentials.
type CreateLeaseResponse struct {
	Lease       LeaseResponse       `json:"lease"`
	Credentials CredentialsResponse `json:"credentials"`
}

// ListLeasesResponse represents a paginated list of leases.
type ListLeasesResponse struct {
	Data []LeaseResponse `json:"data"`
}

// RevokedCountResponse reports how many leases a bulk revoke touched.
type RevokedCountResponse struct {
	Revoked int `json:"revoked"`
}

func mapLeaseToResponse(lease *leaseDomain.DynamicLease) LeaseResponse {
	response := LeaseResponse{
		ID:                lease.ID,
		SecretID:          lease.SecretID.String(),
		SecretPath:        lease.SecretPath,
		BackendType:       lease.BackendType,
		Status:            string(lease.Status),
		TTLSeconds:        lease.TTLSeconds,
		ExpiresAt:         lease.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		RequestedByUserID: lease.RequestedByUserID.String(),
		CreatedAt:         lease.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if lease.RevokedAt != nil {
		formatted := lease.RevokedAt.Format("2006-01-02T15:04:05Z07:00")
		response.RevokedAt = &formatted
	}
	if lease.RevokedByUserID != nil {
		id := lease.RevokedByUserID.String()
		response.RevokedByUserID = &id
	}
	return response
}

// CreateHandler issues short-lived credentials from a DYNAMIC secret.
// POST /v1/leases - Requires the read permission on the secret path.
// SECURITY: The plaintext credentials are returned exactly once.
func (h *LeaseHandler) CreateHandler(c *gin.Context) {
	var req CreateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+req.Path, policyDomain.PermissionRead, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	input := leaseDomain.CreateLeaseInput{
		TeamID:            identity.TeamID,
		Path:              req.Path,
		TTLSeconds:        req.TTLSeconds,
		RequestedByUserID: identity.SubjectID,
	}

	result, err := h.leaseUseCase.CreateLease(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, CreateLeaseResponse{
		Lease: mapLeaseToResponse(result.Lease),
		Credentials: CredentialsResponse{
			Username:    result.Credentials.Username,
			Password:    result.Credentials.Password,
			Host:        result.Credentials.Host,
			Port:        result.Credentials.Port,
			Database:    result.Credentials.Database,
			BackendType: result.Credentials.BackendType,
		},
	})
}

// GetHandler retrieves lease metadata by id; credentials stay sealed.
// GET /v1/leases/:leaseId - Requires the read permission on the secret path.
func (h *LeaseHandler) GetHandler(c *gin.Context) {
	lease, ok := h.leaseParam(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+lease.SecretPath, policyDomain.PermissionRead, h.logger) {
		return
	}

	c.JSON(http.StatusOK, mapLeaseToResponse(lease))
}

// ListHandler retrieves the leases of a secret, newest first.
// GET /v1/leases?secret_id=<uuid>&offset=0&limit=50 - Requires the list
// permission on the secret path.
func (h *LeaseHandler) ListHandler(c *gin.Context) {
	secret, ok := h.secretQuery(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionList, h.logger) {
		return
	}

	leases, err := h.leaseUseCase.ListLeases(c.Request.Context(), secret.ID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	data := make([]LeaseResponse, 0, len(leases))
	for _, lease := range leases {
		data = append(data, mapLeaseToResponse(lease))
	}

	c.JSON(http.StatusOK, ListLeasesResponse{Data: data})
}

// RevokeHandler revokes an ACTIVE lease and drops its backend user.
// DELETE /v1/leases/:leaseId - Requires the delete permission on the secret path.
func (h *LeaseHandler) RevokeHandler(c *gin.Context) {
	lease, ok := h.leaseParam(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+lease.SecretPath, policyDomain.PermissionDelete, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	revoked, err := h.leaseUseCase.RevokeLease(c.Request.Context(), lease.ID, identity.SubjectID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapLeaseToResponse(revoked))
}

// RevokeAllHandler revokes every ACTIVE lease of a secret.
// DELETE /v1/leases?secret_id=<uuid> - Requires the delete permission on the
// secret path.
func (h *LeaseHandler) RevokeAllHandler(c *gin.Context) {
	secret, ok := h.secretQuery(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionDelete, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	revoked, err := h.leaseUseCase.RevokeAllLeases(c.Request.Context(), secret.ID, identity.SubjectID)
	h.audit(c, "lease_revoke_all", secret.Path, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, RevokedCountResponse{Revoked: revoked})
}

// leaseParam resolves the :leaseId path parameter to a team-scoped lease.
func (h *LeaseHandler) leaseParam(c *gin.Context) (*leaseDomain.DynamicLease, bool) {
	leaseID := c.Param("leaseId")
	if leaseID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid lease id"), h.logger)
		return nil, false
	}

	lease, err := h.leaseUseCase.GetLease(c.Request.Context(), leaseID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return nil, false
	}

	// Leases of other teams stay invisible.
	if _, ok := h.teamSecret(c, lease.SecretID); !ok {
		return nil, false
	}

	return lease, true
}

// secretQuery resolves the secret_id query parameter to a team-scoped secret.
func (h *LeaseHandler) secretQuery(c *gin.Context) (*secretsDomain.Secret, bool) {
	secretID, err := uuid.Parse(c.Query("secret_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid secret_id"), h.logger)
		return nil, false
	}
	return h.teamSecret(c, secretID)
}

// teamSecret loads a secret, hiding secrets of other teams behind a 404.
func (h *LeaseHandler) teamSecret(c *gin.Context, secretID uuid.UUID) (*secretsDomain.Secret, bool) {
	secret, err := h.secretUseCase.Get(c.Request.Context(), secretID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return nil, false
	}

	identity, ok := requestctx.IdentityFrom(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "no identity in request context"), h.logger)
		return nil, false
	}
	if secret.TeamID != identity.TeamID {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrNotFound, "secret not found"), h.logger)
		return nil, false
	}

	return secret, true
}

// audit emits a fire-and-forget audit record for one lease operation.
func (h *LeaseHandler) audit(c *gin.Context, operation, path string, resourceID *string, err error) {
	resourceType := resourceTypeLease
	record := auditDomain.Record{
		Operation:    operation,
		Path:         &path,
		ResourceType: &resourceType,
		ResourceID:   resourceID,
		Success:      err == nil,
	}
	if identity, ok := requestctx.IdentityFrom(c.Request.Context()); ok {
		teamID := identity.TeamID
		record.TeamID = &teamID
		if identity.SubjectType == requestctx.SubjectUser {
			userID := identity.SubjectID
			record.UserID = &userID
		}
	}
	if err != nil {
		message := fmt.Sprintf("%v", err)
		record.ErrorMessage = &message
	}

	h.auditUseCase.Record(c.Request.Context(), record)
}
