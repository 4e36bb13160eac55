// Package http provides HTTP handlers for transit key management and the
// encryption-as-a-service operations. Key material never leaves the service.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	"github.com/allisson/vault/internal/httputil"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
	transitDomain "github.com/allisson/vault/internal/transit/domain"
	"github.com/allisson/vault/internal/transit/http/dto"
	transitUsecase "github.com/allisson/vault/internal/transit/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// resourceTypeTransitKey tags audit records emitted by the transit handlers.
const resourceTypeTransitKey = "transit_key"

// transitAuthzPath is the policy path for a named transit key.
func transitAuthzPath(name string) string {
	return "/transit/" + name
}

// TransitKeyHandler handles HTTP requests for transit key management.
type TransitKeyHandler struct {
	transitKeyUseCase transitUsecase.TransitKeyUseCase
	policyUseCase     policyUsecase.PolicyUseCase
	auditUseCase      auditUsecase.AuditUseCase
	logger            *slog.Logger
}

// NewTransitKeyHandler creates a new transit key handler with required dependencies.
func NewTransitKeyHandler(
	transitKeyUseCase transitUsecase.TransitKeyUseCase,
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *TransitKeyHandler {
	return &TransitKeyHandler{
		transitKeyUseCase: transitKeyUseCase,
		policyUseCase:     policyUseCase,
		auditUseCase:      auditUseCase,
		logger:            logger,
	}
}

// CreateHandler creates a named transit key with a fresh version 1.
// POST /v1/transit/keys - Requires the write permission.
func (h *TransitKeyHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateTransitKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(req.Name), policyDomain.PermissionWrite, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	input := transitDomain.CreateTransitKeyInput{
		TeamID:          identity.TeamID,
		Name:            req.Name,
		Description:     req.Description,
		IsDeletable:     req.IsDeletable,
		CreatedByUserID: identity.SubjectID,
	}

	key, err := h.transitKeyUseCase.Create(c.Request.Context(), input)
	auditTransit(c, h.auditUseCase, "transit_key_create", req.Name, transitKeyID(key), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapTransitKeyToResponse(key))
}

// GetHandler retrieves a transit key by name.
// GET /v1/transit/keys/:name - Requires the read permission.
func (h *TransitKeyHandler) GetHandler(c *gin.Context) {
	name := c.Param("name")

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionRead, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	key, err := h.transitKeyUseCase.Get(c.Request.Context(), identity.TeamID, name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransitKeyToResponse(key))
}

// ListHandler retrieves the team's transit keys with pagination.
// GET /v1/transit/keys?offset=0&limit=50 - Requires the list permission.
func (h *TransitKeyHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, "/transit", policyDomain.PermissionList, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	keys, err := h.transitKeyUseCase.List(c.Request.Context(), identity.TeamID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransitKeysToListResponse(keys))
}

// RotateHandler appends a fresh key version and makes it current.
// POST /v1/transit/keys/:name/rotate - Requires the rotate permission.
func (h *TransitKeyHandler) RotateHandler(c *gin.Context) {
	name := c.Param("name")

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionRotate, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	key, err := h.transitKeyUseCase.Rotate(c.Request.Context(), identity.TeamID, name)
	auditTransit(c, h.auditUseCase, "transit_key_rotate", name, transitKeyID(key), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransitKeyToResponse(key))
}

// UpdateHandler applies partial changes; minDecryptionVersion may only move up.
// PATCH /v1/transit/keys/:name - Requires the write permission.
func (h *TransitKeyHandler) UpdateHandler(c *gin.Context) {
	name := c.Param("name")

	var req dto.UpdateTransitKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionWrite, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	input := transitDomain.UpdateTransitKeyInput{
		Description:          req.Description,
		MinDecryptionVersion: req.MinDecryptionVersion,
		IsDeletable:          req.IsDeletable,
	}

	key, err := h.transitKeyUseCase.Update(c.Request.Context(), identity.TeamID, name, input)
	auditTransit(c, h.auditUseCase, "transit_key_update", name, transitKeyID(key), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransitKeyToResponse(key))
}

// DeleteHandler removes a transit key; only permitted when it is deletable.
// DELETE /v1/transit/keys/:name - Requires the delete permission.
// Returns 204 No Content.
func (h *TransitKeyHandler) DeleteHandler(c *gin.Context) {
	name := c.Param("name")

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionDelete, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	err := h.transitKeyUseCase.Delete(c.Request.Context(), identity.TeamID, name)
	auditTransit(c, h.auditUseCase, "transit_key_delete", name, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// auditTransit emits a fire-and-forget audit record for one transit operation.
func auditTransit(
	c *gin.Context,
	audits auditUsecase.AuditUseCase,
	operation, name string,
	resourceID *string,
	err error,
) {
	resourceType := resourceTypeTransitKey
	path := transitAuthzPath(name)
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

	audits.Record(c.Request.Context(), record)
}

func transitKeyID(key *transitDomain.TransitKey) *string {
	if key == nil {
		return nil
	}
	id := key.ID.String()
	return &id
}
