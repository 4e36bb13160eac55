// Package http provides HTTP handlers for rotation policy management and
// on-demand rotation. Policies are addressed by the secret they rotate.
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
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
	rotationDomain "github.com/allisson/vault/internal/rotation/domain"
	rotationUsecase "github.com/allisson/vault/internal/rotation/usecase"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
	secretsUsecase "github.com/allisson/vault/internal/secrets/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// resourceTypeRotationPolicy tags audit records emitted by this handler.
const resourceTypeRotationPolicy = "rotation_policy"

// RotationHandler handles HTTP requests for rotation policies and rotation
// runs. The owning secret scopes every route.
type RotationHandler struct {
	rotationUseCase rotationUsecase.RotationUseCase
	secretUseCase   secretsUsecase.SecretUseCase
	policyUseCase   policyUsecase.PolicyUseCase
	auditUseCase    auditUsecase.AuditUseCase
	logger          *slog.Logger
}

// NewRotationHandler creates a new rotation handler with required dependencies.
func NewRotationHandler(
	rotationUseCase rotationUsecase.RotationUseCase,
	secretUseCase secretsUsecase.SecretUseCase,
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *RotationHandler {
	return &RotationHandler{
		rotationUseCase: rotationUseCase,
		secretUseCase:   secretUseCase,
		policyUseCase:   policyUseCase,
		auditUseCase:    auditUseCase,
		logger:          logger,
	}
}

// CreateRotationPolicyRequest contains the parameters for creating a
// rotation policy.
type CreateRotationPolicyRequest struct {
	SecretID           string  `json:"secret_id"`
	Strategy           string  `json:"strategy"`
	IntervalHours      int     `json:"interval_hours"`
	RandomLength       *int    `json:"random_length"`
	RandomCharset      *string `json:"random_charset"`
	ExternalAPIURL     *string `json:"external_api_url"`
	ExternalAPIHeaders *string `json:"external_api_headers"`
	ScriptCommand      *string `json:"script_command"`
	MaxFailures        *int    `json:"max_failures"`
}

// Validate checks if the create rotation policy request is valid.
func (r *CreateRotationPolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SecretID, validation.Required, validation.By(uuidRule)),
		validation.Field(&r.Strategy,
			validation.Required,
			validation.In(
				string(rotationDomain.StrategyRandomGenerate),
				string(rotationDomain.StrategyExternalAPI),
				string(rotationDomain.StrategyCustomScript),
			),
		),
		validation.Field(&r.IntervalHours, validation.Required, validation.Min(1)),
		validation.Field(&r.RandomLength, validation.Min(1)),
		validation.Field(&r.MaxFailures, validation.Min(1)),
	)
}

// UpdateRotationPolicyRequest contains partial updates for a rotation policy.
type UpdateRotationPolicyRequest struct {
	Strategy           *string `json:"strategy"`
	IntervalHours      *int    `json:"interval_hours"`
	RandomLength       *int    `json:"random_length"`
	RandomCharset      *string `json:"random_charset"`
	ExternalAPIURL     *string `json:"external_api_url"`
	ExternalAPIHeaders *string `json:"external_api_headers"`
	ScriptCommand      *string `json:"script_command"`
	MaxFailures        *int    `json:"max_failures"`
	IsActive           *bool   `json:"is_active"`
}

// Validate checks if the update rotation policy request is valid.
func (r *UpdateRotationPolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Strategy,
			validation.In(
				string(rotationDomain.StrategyRandomGenerate),
				string(rotationDomain.StrategyExternalAPI),
				string(rotationDomain.StrategyCustomScript),
			),
		),
		validation.Field(&r.IntervalHours, validation.Min(1)),
		validation.Field(&r.RandomLength, validation.Min(1)),
		validation.Field(&r.MaxFailures, validation.Min(1)),
	)
}

func uuidRule(value interface{}) error {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// RotationPolicyResponse represents a rotation policy in API responses.
type RotationPolicyResponse struct {
	ID             string  `json:"id"`
	SecretID       string  `json:"secret_id"`
	Strategy       string  `json:"strategy"`
	IntervalHours  int     `json:"interval_hours"`
	RandomLength   *int    `json:"random_length,omitempty"`
	RandomCharset  *string `json:"random_charset,omitempty"`
	ExternalAPIURL *string `json:"external_api_url,omitempty"`
	IsActive       bool    `json:"is_active"`
	FailureCount   int     `json:"failure_count"`
	MaxFailures    *int    `json:"max_failures,omitempty"`
	LastRotatedAt  *string `json:"last_rotated_at,omitempty"`
	NextRotationAt string  `json:"next_rotation_at"`
}

// RotationHistoryResponse represents one rotation attempt in API responses.
type RotationHistoryResponse struct {
	ID              string  `json:"id"`
	SecretID        string  `json:"secret_id"`
	Path            string  `json:"path"`
	Strategy        string  `json:"strategy"`
	PreviousVersion uint    `json:"previous_version"`
	NewVersion      *uint   `json:"new_version,omitempty"`
	Success         bool    `json:"success"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	DurationMs      int64   `json:"duration_ms"`
	CreatedAt       string  `json:"created_at"`
}

func mapRotationPolicyToResponse(policy *rotationDomain.RotationPolicy) RotationPolicyResponse {
	response := RotationPolicyResponse{
		ID:             policy.ID.String(),
		SecretID:       policy.SecretID.String(),
		Strategy:       string(policy.Strategy),
		IntervalHours:  policy.IntervalHours,
		RandomLength:   policy.RandomLength,
		RandomCharset:  policy.RandomCharset,
		ExternalAPIURL: policy.ExternalAPIURL,
		IsActive:       policy.IsActive,
		FailureCount:   policy.FailureCount,
		MaxFailures:    policy.MaxFailures,
		NextRotationAt: policy.NextRotationAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if policy.LastRotatedAt != nil {
		formatted := policy.LastRotatedAt.Format("2006-01-02T15:04:05Z07:00")
		response.LastRotatedAt = &formatted
	}
	return response
}

func mapHistoryToResponse(entry *rotationDomain.RotationHistory) RotationHistoryResponse {
	return RotationHistoryResponse{
		ID:              entry.ID.String(),
		SecretID:        entry.SecretID.String(),
		Path:            entry.Path,
		Strategy:        string(entry.Strategy),
		PreviousVersion: entry.PreviousVersion,
		NewVersion:      entry.NewVersion,
		Success:         entry.Success,
		ErrorMessage:    entry.ErrorMessage,
		DurationMs:      entry.DurationMs,
		CreatedAt:       entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreatePolicyHandler creates a rotation policy for a secret.
// POST /v1/rotation/policies - Requires the rotate permission on the secret path.
func (h *RotationHandler) CreatePolicyHandler(c *gin.Context) {
	var req CreateRotationPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	// Validated above
	secretID, _ := uuid.Parse(req.SecretID)
	secret, ok := h.teamSecret(c, secretID)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRotate, h.logger) {
		return
	}

	input := rotationDomain.CreateRotationPolicyInput{
		SecretID:           secretID,
		Strategy:           rotationDomain.Strategy(req.Strategy),
		IntervalHours:      req.IntervalHours,
		RandomLength:       req.RandomLength,
		RandomCharset:      req.RandomCharset,
		ExternalAPIURL:     req.ExternalAPIURL,
		ExternalAPIHeaders: req.ExternalAPIHeaders,
		ScriptCommand:      req.ScriptCommand,
		MaxFailures:        req.MaxFailures,
	}

	policy, err := h.rotationUseCase.CreatePolicy(c.Request.Context(), input)
	h.audit(c, "rotation_policy_create", secret.Path, rotationPolicyID(policy), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapRotationPolicyToResponse(policy))
}

// GetPolicyHandler retrieves the rotation policy of a secret.
// GET /v1/rotation/policies/:secretId - Requires the read permission on the secret path.
func (h *RotationHandler) GetPolicyHandler(c *gin.Context) {
	secret, ok := h.secretParam(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRead, h.logger) {
		return
	}

	policy, err := h.rotationUseCase.GetPolicyBySecret(c.Request.Context(), secret.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapRotationPolicyToResponse(policy))
}

// UpdatePolicyHandler applies partial changes to a secret's rotation policy.
// PATCH /v1/rotation/policies/:secretId - Requires the rotate permission on the secret path.
func (h *RotationHandler) UpdatePolicyHandler(c *gin.Context) {
	secret, ok := h.secretParam(c)
	if !ok {
		return
	}

	var req UpdateRotationPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRotate, h.logger) {
		return
	}

	existing, err := h.rotationUseCase.GetPolicyBySecret(c.Request.Context(), secret.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	input := rotationDomain.UpdateRotationPolicyInput{
		IntervalHours:      req.IntervalHours,
		RandomLength:       req.RandomLength,
		RandomCharset:      req.RandomCharset,
		ExternalAPIURL:     req.ExternalAPIURL,
		ExternalAPIHeaders: req.ExternalAPIHeaders,
		ScriptCommand:      req.ScriptCommand,
		MaxFailures:        req.MaxFailures,
		IsActive:           req.IsActive,
	}
	if req.Strategy != nil {
		strategy := rotationDomain.Strategy(*req.Strategy)
		input.Strategy = &strategy
	}

	policy, err := h.rotationUseCase.UpdatePolicy(c.Request.Context(), existing.ID, input)
	h.audit(c, "rotation_policy_update", secret.Path, rotationPolicyID(policy), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapRotationPolicyToResponse(policy))
}

// DeletePolicyHandler removes the rotation policy of a secret.
// DELETE /v1/rotation/policies/:secretId - Requires the rotate permission on the secret path.
// Returns 204 No Content.
func (h *RotationHandler) DeletePolicyHandler(c *gin.Context) {
	secret, ok := h.secretParam(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRotate, h.logger) {
		return
	}

	existing, err := h.rotationUseCase.GetPolicyBySecret(c.Request.Context(), secret.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	err = h.rotationUseCase.DeletePolicy(c.Request.Context(), existing.ID)
	h.audit(c, "rotation_policy_delete", secret.Path, rotationPolicyID(existing), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RotateHandler runs one on-demand rotation for a secret.
// POST /v1/rotation/rotate/:secretId - Requires the rotate permission on the secret path.
func (h *RotationHandler) RotateHandler(c *gin.Context) {
	secret, ok := h.secretParam(c)
	if !ok {
		return
	}
	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRotate, h.logger) {
		return
	}

	var triggeredBy *uuid.UUID
	if identity, found := requestctx.IdentityFrom(c.Request.Context()); found {
		if identity.SubjectType == requestctx.SubjectUser {
			userID := identity.SubjectID
			triggeredBy = &userID
		}
	}

	history, err := h.rotationUseCase.RotateSecret(c.Request.Context(), secret.ID, triggeredBy)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapHistoryToResponse(history))
}

// ListHistoryHandler returns the rotation attempts of a secret, newest first.
// GET /v1/rotation/history/:secretId?offset=0&limit=50 - Requires the read
// permission on the secret path.
func (h *RotationHandler) ListHistoryHandler(c *gin.Context) {
	secret, ok := h.secretParam(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+secret.Path, policyDomain.PermissionRead, h.logger) {
		return
	}

	entries, err := h.rotationUseCase.ListHistory(c.Request.Context(), secret.ID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	data := make([]RotationHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, mapHistoryToResponse(entry))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

// secretParam resolves the :secretId path parameter to a team-scoped secret.
func (h *RotationHandler) secretParam(c *gin.Context) (*secretsDomain.Secret, bool) {
	secretID, err := uuid.Parse(c.Param("secretId"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid secret id"), h.logger)
		return nil, false
	}
	return h.teamSecret(c, secretID)
}

// teamSecret loads a secret, hiding secrets of other teams behind a 404.
func (h *RotationHandler) teamSecret(c *gin.Context, secretID uuid.UUID) (*secretsDomain.Secret, bool) {
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

// audit emits a fire-and-forget audit record for one rotation-policy
// operation. Rotation runs themselves are audited by the rotation use case.
func (h *RotationHandler) audit(c *gin.Context, operation, path string, resourceID *string, err error) {
	resourceType := resourceTypeRotationPolicy
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

func rotationPolicyID(policy *rotationDomain.RotationPolicy) *string {
	if policy == nil {
		return nil
	}
	id := policy.ID.String()
	return &id
}
