// Package http provides HTTP handlers for the seal state machine. These
// endpoints stay reachable while the vault is sealed; everything else in the
// data plane is gated on the unsealed state.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/vault/internal/audit/domain"
	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	"github.com/allisson/vault/internal/httputil"
	"github.com/allisson/vault/internal/requestctx"
	sealDomain "github.com/allisson/vault/internal/seal/domain"
	sealUsecase "github.com/allisson/vault/internal/seal/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// SealHandler handles HTTP requests for seal status and transitions.
type SealHandler struct {
	sealUseCase  sealUsecase.SealUseCase
	auditUseCase auditUsecase.AuditUseCase
	logger       *slog.Logger
}

// NewSealHandler creates a new seal handler with required dependencies.
func NewSealHandler(
	sealUseCase sealUsecase.SealUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *SealHandler {
	return &SealHandler{
		sealUseCase:  sealUseCase,
		auditUseCase: auditUseCase,
		logger:       logger,
	}
}

// SubmitKeyShareRequest contains one base64 key share.
type SubmitKeyShareRequest struct {
	Share string `json:"share"`
}

// Validate checks if the submit key share request is valid.
func (r *SubmitKeyShareRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Share,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// GenerateKeySharesRequest contains the share parameters N and M.
type GenerateKeySharesRequest struct {
	TotalShares int `json:"total_shares"`
	Threshold   int `json:"threshold"`
}

// Validate checks if the generate key shares request is valid.
func (r *GenerateKeySharesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TotalShares, validation.Required, validation.Min(1), validation.Max(255)),
		validation.Field(&r.Threshold, validation.Required, validation.Min(1), validation.Max(255)),
	)
}

// SealStatusResponse is the wire form of the seal state snapshot.
type SealStatusResponse struct {
	State           string     `json:"state"`
	TotalShares     int        `json:"total_shares"`
	Threshold       int        `json:"threshold"`
	CollectedShares int        `json:"collected_shares"`
	UnsealedAt      *time.Time `json:"unsealed_at,omitempty"`
}

// GenerateKeySharesResponse carries freshly generated shares.
// SECURITY: Shares are returned exactly once and never stored or logged.
type GenerateKeySharesResponse struct {
	Shares []string `json:"shares"`
}

func mapStatusToResponse(status sealDomain.Status) SealStatusResponse {
	return SealStatusResponse{
		State:           string(status.State),
		TotalShares:     status.TotalShares,
		Threshold:       status.Threshold,
		CollectedShares: status.CollectedShares,
		UnsealedAt:      status.UnsealedAt,
	}
}

// StatusHandler returns the current seal status.
// GET /v1/seal/status
func (h *SealHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, mapStatusToResponse(h.sealUseCase.Status()))
}

// UnsealHandler accepts one key share and advances the unseal progress.
// POST /v1/seal/unseal
func (h *SealHandler) UnsealHandler(c *gin.Context) {
	var req SubmitKeyShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	status, err := h.sealUseCase.SubmitKeyShare(req.Share)
	h.audit(c, "seal_unseal_submit", err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapStatusToResponse(status))
}

// SealVaultHandler seals the vault and discards collected shares.
// POST /v1/seal/seal
func (h *SealHandler) SealVaultHandler(c *gin.Context) {
	err := h.sealUseCase.Seal()
	h.audit(c, "seal_seal", err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapStatusToResponse(h.sealUseCase.Status()))
}

// GenerateKeySharesHandler splits the master key into fresh shares.
// POST /v1/seal/generate-shares - Requires the UNSEALED state.
// SECURITY: The shares appear only in this response.
func (h *SealHandler) GenerateKeySharesHandler(c *gin.Context) {
	var req GenerateKeySharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	shares, err := h.sealUseCase.GenerateKeyShares(req.TotalShares, req.Threshold)
	h.audit(c, "seal_generate_shares", err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, GenerateKeySharesResponse{Shares: shares})
}

// audit emits a fire-and-forget audit record for a seal operation. Seal
// transitions are not team-scoped; the user id is attached when the request
// carries an identity.
func (h *SealHandler) audit(c *gin.Context, operation string, err error) {
	record := auditDomain.Record{
		Operation: operation,
		Success:   err == nil,
	}
	if identity, ok := requestctx.IdentityFrom(c.Request.Context()); ok {
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
