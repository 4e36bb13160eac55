// Package http provides HTTP handlers for secret management operations.
// Secrets are encrypted at rest using envelope encryption and versioned per
// path; every operation is authorized against the policy engine and audited.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	"github.com/allisson/vault/internal/httputil"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
	secretsDomain "github.com/allisson/vault/internal/secrets/domain"
	"github.com/allisson/vault/internal/secrets/http/dto"
	secretsUsecase "github.com/allisson/vault/internal/secrets/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// resourceTypeSecret tags audit records emitted by this handler.
const resourceTypeSecret = "secret"

// SecretHandler handles HTTP requests for secret management operations.
// It coordinates authorization and audit logging with the SecretUseCase.
type SecretHandler struct {
	secretUseCase secretsUsecase.SecretUseCase
	policyUseCase policyUsecase.PolicyUseCase
	auditUseCase  auditUsecase.AuditUseCase
	logger        *slog.Logger
}

// NewSecretHandler creates a new secret handler with required dependencies.
func NewSecretHandler(
	secretUseCase secretsUsecase.SecretUseCase,
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *SecretHandler {
	return &SecretHandler{
		secretUseCase: secretUseCase,
		policyUseCase: policyUseCase,
		auditUseCase:  auditUseCase,
		logger:        logger,
	}
}

// CreateHandler creates a new secret at the given path.
// POST /v1/secrets/data/*path - Requires the write permission.
// Returns 201 Created with secret metadata (never the value).
func (h *SecretHandler) CreateHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	var req dto.CreateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	metadata, err := req.NormalisedMetadata()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionWrite, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	input := secretsDomain.CreateSecretInput{
		TeamID:        identity.TeamID,
		Path:          path,
		Name:          req.Name,
		Description:   req.Description,
		Type:          secretsDomain.SecretType(req.Type),
		Value:         req.Value,
		Metadata:      metadata,
		MaxVersions:   req.MaxVersions,
		RetentionDays: req.RetentionDays,
		ExpiresAt:     req.ExpiresAt,
		OwnerUserID:   identity.SubjectID,
		ReferenceArn:  req.ReferenceArn,
	}

	secret, err := h.secretUseCase.Create(c.Request.Context(), input)
	h.audit(c, "secret_create", path, secretID(secret), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSecretToResponse(secret))
}

// GetValueHandler decrypts and returns the secret value at a path.
// GET /v1/secrets/data/*path?version=N - Requires the read permission.
func (h *SecretHandler) GetValueHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionRead, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())

	var value *secretsDomain.SecretValue
	var err error

	versionStr := c.Query("version")
	if versionStr != "" {
		version, parseErr := strconv.ParseUint(versionStr, 10, 32)
		if parseErr != nil {
			httputil.HandleValidationErrorGin(
				c,
				fmt.Errorf("invalid version parameter: must be a positive integer"),
				h.logger,
			)
			return
		}
		value, err = h.secretUseCase.GetVersion(c.Request.Context(), identity.TeamID, path, uint(version))
	} else {
		value, err = h.secretUseCase.GetValue(c.Request.Context(), identity.TeamID, path)
	}

	h.audit(c, "secret_read", path, valueSecretID(value), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretValueToResponse(value))
}

// UpdateHandler applies partial changes to a secret; a non-empty value
// appends a new version and runs retention.
// PUT /v1/secrets/data/*path - Requires the write permission.
func (h *SecretHandler) UpdateHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	var req dto.UpdateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	metadata, err := req.NormalisedMetadata()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionWrite, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	input := secretsDomain.UpdateSecretInput{
		Value:             req.Value,
		ChangeDescription: req.ChangeDescription,
		Description:       req.Description,
		Metadata:          metadata,
		MaxVersions:       req.MaxVersions,
		RetentionDays:     req.RetentionDays,
		ExpiresAt:         req.ExpiresAt,
		UpdatedByUserID:   identity.SubjectID,
	}

	secret, err := h.secretUseCase.Update(c.Request.Context(), identity.TeamID, path, input)
	h.audit(c, "secret_update", path, secretID(secret), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretToResponse(secret))
}

// DeleteHandler soft deletes a secret; with ?hard=true the secret and all of
// its versions are removed irreversibly.
// DELETE /v1/secrets/data/*path - Requires the delete permission.
// Returns 204 No Content.
func (h *SecretHandler) DeleteHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionDelete, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secret, err := h.secretUseCase.GetByPath(c.Request.Context(), identity.TeamID, path)
	if err != nil {
		h.audit(c, "secret_delete", path, nil, err)
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	operation := "secret_soft_delete"
	if c.Query("hard") == "true" {
		operation = "secret_hard_delete"
		err = h.secretUseCase.HardDelete(c.Request.Context(), secret.ID)
	} else {
		err = h.secretUseCase.SoftDelete(c.Request.Context(), secret.ID)
	}

	h.audit(c, operation, path, secretID(secret), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// GetMetadataHandler returns secret metadata: the entity without any value
// plus the key/value metadata set.
// GET /v1/secrets/metadata/*path - Requires the read permission.
func (h *SecretHandler) GetMetadataHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionRead, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secret, err := h.secretUseCase.GetByPath(c.Request.Context(), identity.TeamID, path)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	metadata, err := h.secretUseCase.GetMetadata(c.Request.Context(), secret.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := struct {
		dto.SecretResponse
		Metadata map[string]string `json:"metadata"`
	}{
		SecretResponse: dto.MapSecretToResponse(secret),
		Metadata:       metadata,
	}

	c.JSON(http.StatusOK, response)
}

// ListVersionsHandler returns the version rows of a secret, newest first.
// GET /v1/secrets/versions/*path - Requires the read permission.
func (h *SecretHandler) ListVersionsHandler(c *gin.Context) {
	path, ok := h.pathParam(c)
	if !ok {
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/"+path, policyDomain.PermissionRead, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secret, err := h.secretUseCase.GetByPath(c.Request.Context(), identity.TeamID, path)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	versions, err := h.secretUseCase.ListVersions(c.Request.Context(), secret.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVersionsToListResponse(versions))
}

// ListHandler lists the team's secrets applying at most one filter, picked
// in priority order: type, path prefix, active only.
// GET /v1/secrets?type=STATIC&prefix=services/&active=true&offset=0&limit=50
// Requires the list permission.
func (h *SecretHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/secrets", policyDomain.PermissionList, h.logger) {
		return
	}

	var filter secretsDomain.ListFilter
	if typeStr := c.Query("type"); typeStr != "" {
		secretType := secretsDomain.SecretType(typeStr)
		filter.Type = &secretType
	}
	if prefix := c.Query("prefix"); prefix != "" {
		filter.PathPrefix = &prefix
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secrets, err := h.secretUseCase.List(c.Request.Context(), identity.TeamID, filter, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// SearchHandler matches a term against secret names, case-insensitively.
// GET /v1/secrets/search?q=payment&offset=0&limit=50 - Requires the list permission.
func (h *SecretHandler) SearchHandler(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("q parameter cannot be empty"), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/secrets", policyDomain.PermissionList, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secrets, err := h.secretUseCase.Search(c.Request.Context(), identity.TeamID, term, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// ListPathsHandler returns the deduplicated sorted paths of active secrets
// under a prefix.
// GET /v1/secrets/paths?prefix=services/ - Requires the list permission.
func (h *SecretHandler) ListPathsHandler(c *gin.Context) {
	if !httputil.Authorize(c, h.policyUseCase, "/secrets", policyDomain.PermissionList, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	paths, err := h.secretUseCase.ListPaths(c.Request.Context(), identity.TeamID, c.Query("prefix"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ListPathsResponse{Paths: paths})
}

// ExpiringHandler returns active secrets expiring within the next hours.
// GET /v1/secrets/expiring?hours=24 - Requires the list permission.
func (h *SecretHandler) ExpiringHandler(c *gin.Context) {
	hours := 24
	if hoursStr := c.Query("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed < 1 {
			httputil.HandleValidationErrorGin(
				c,
				fmt.Errorf("invalid hours parameter: must be a positive integer"),
				h.logger,
			)
			return
		}
		hours = parsed
	}

	if !httputil.Authorize(c, h.policyUseCase, "/secrets", policyDomain.PermissionList, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	secrets, err := h.secretUseCase.GetExpiringSecrets(c.Request.Context(), identity.TeamID, hours)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// pathParam extracts the wildcard path parameter, rejecting empty paths.
func (h *SecretHandler) pathParam(c *gin.Context) (string, bool) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("path cannot be empty"),
			h.logger,
		)
		return "", false
	}
	return path, true
}

// audit emits a fire-and-forget audit record for one secret operation.
func (h *SecretHandler) audit(c *gin.Context, operation, path string, resourceID *string, err error) {
	resourceType := resourceTypeSecret
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

func secretID(secret *secretsDomain.Secret) *string {
	if secret == nil {
		return nil
	}
	id := secret.ID.String()
	return &id
}

func valueSecretID(value *secretsDomain.SecretValue) *string {
	if value == nil || value.Secret == nil {
		return nil
	}
	return secretID(value.Secret)
}
