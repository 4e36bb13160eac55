// Package http provides the audit trail query endpoint.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	apperrors "github.com/allisson/vault/internal/errors"
	"github.com/allisson/vault/internal/httputil"
	"github.com/allisson/vault/internal/requestctx"
)

// AuditHandler handles HTTP requests for querying the audit trail.
type AuditHandler struct {
	auditUseCase auditUsecase.AuditUseCase
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler with required dependencies.
func NewAuditHandler(auditUseCase auditUsecase.AuditUseCase, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{auditUseCase: auditUseCase, logger: logger}
}

// AuditEntryResponse represents one audit entry in API responses.
type AuditEntryResponse struct {
	ID            string    `json:"id"`
	TeamID        *string   `json:"team_id,omitempty"`
	UserID        *string   `json:"user_id,omitempty"`
	Operation     string    `json:"operation"`
	Path          *string   `json:"path,omitempty"`
	ResourceType  *string   `json:"resource_type,omitempty"`
	ResourceID    *string   `json:"resource_id,omitempty"`
	Success       bool      `json:"success"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	IPAddress     string    `json:"ip_address"`
	CorrelationID string    `json:"correlation_id"`
	Details       *string   `json:"details,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListAuditEntriesResponse represents a paginated list of audit entries.
type ListAuditEntriesResponse struct {
	Data []AuditEntryResponse `json:"data"`
}

func mapAuditEntryToResponse(entry *auditDomain.AuditEntry) AuditEntryResponse {
	response := AuditEntryResponse{
		ID:            entry.ID.String(),
		Operation:     entry.Operation,
		Path:          entry.Path,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		IPAddress:     entry.IPAddress,
		CorrelationID: entry.CorrelationID,
		Details:       entry.Details,
		CreatedAt:     entry.CreatedAt,
	}
	if entry.TeamID != nil {
		id := entry.TeamID.String()
		response.TeamID = &id
	}
	if entry.UserID != nil {
		id := entry.UserID.String()
		response.UserID = &id
	}
	return response
}

// QueryHandler retrieves the caller team's audit entries, newest first.
// GET /v1/audit?offset=0&limit=50 - Restricted to user subjects.
//
// At most one filter applies, by priority: resource_type+resource_id,
// user_id, operation, path, from/until. success_only combines with any.
func (h *AuditHandler) QueryHandler(c *gin.Context) {
	identity, ok := requestctx.IdentityFrom(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "no identity in request context"), h.logger)
		return
	}
	if identity.SubjectType != requestctx.SubjectUser {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrForbidden, "audit queries require a user subject"), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	filter, err := parseQueryFilter(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	entries, err := h.auditUseCase.Query(c.Request.Context(), identity.TeamID, filter, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	data := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, mapAuditEntryToResponse(entry))
	}

	c.JSON(http.StatusOK, ListAuditEntriesResponse{Data: data})
}

func parseQueryFilter(c *gin.Context) (auditDomain.QueryFilter, error) {
	var filter auditDomain.QueryFilter

	if resourceType := c.Query("resource_type"); resourceType != "" {
		filter.ResourceType = &resourceType
	}
	if resourceID := c.Query("resource_id"); resourceID != "" {
		filter.ResourceID = &resourceID
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid user_id")
		}
		filter.UserID = &userID
	}
	if operation := c.Query("operation"); operation != "" {
		filter.Operation = &operation
	}
	if path := c.Query("path"); path != "" {
		filter.Path = &path
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid from timestamp: %v", err))
		}
		filter.From = &from
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid until timestamp: %v", err))
		}
		filter.Until = &until
	}
	filter.SuccessOnly = c.Query("success_only") == "true"

	return filter, nil
}
