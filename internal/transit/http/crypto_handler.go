package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	"github.com/allisson/vault/internal/httputil"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
	"github.com/allisson/vault/internal/transit/http/dto"
	transitUsecase "github.com/allisson/vault/internal/transit/usecase"
	customValidation "github.com/allisson/vault/internal/validation"
)

// CryptoHandler handles the transit encrypt/decrypt/rewrap/datakey operations.
type CryptoHandler struct {
	transitKeyUseCase transitUsecase.TransitKeyUseCase
	policyUseCase     policyUsecase.PolicyUseCase
	auditUseCase      auditUsecase.AuditUseCase
	logger            *slog.Logger
}

// NewCryptoHandler creates a new crypto handler with required dependencies.
func NewCryptoHandler(
	transitKeyUseCase transitUsecase.TransitKeyUseCase,
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *CryptoHandler {
	return &CryptoHandler{
		transitKeyUseCase: transitKeyUseCase,
		policyUseCase:     policyUseCase,
		auditUseCase:      auditUseCase,
		logger:            logger,
	}
}

// EncryptHandler encrypts base64 plaintext under the current key version.
// POST /v1/transit/encrypt/:name - Requires the encrypt permission.
func (h *CryptoHandler) EncryptHandler(c *gin.Context) {
	name := c.Param("name")

	var req dto.EncryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionEncrypt, h.logger) {
		return
	}

	// Base64 already validated
	plaintext, _ := base64.StdEncoding.DecodeString(req.Plaintext)

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	ciphertext, err := h.transitKeyUseCase.Encrypt(c.Request.Context(), identity.TeamID, name, plaintext)
	auditTransit(c, h.auditUseCase, "transit_encrypt", name, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CiphertextResponse{Ciphertext: ciphertext})
}

// DecryptHandler decrypts an envelope with the version named in its key id.
// POST /v1/transit/decrypt/:name - Requires the decrypt permission.
func (h *CryptoHandler) DecryptHandler(c *gin.Context) {
	name := c.Param("name")

	var req dto.DecryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionDecrypt, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	plaintext, err := h.transitKeyUseCase.Decrypt(c.Request.Context(), identity.TeamID, name, req.Ciphertext)
	auditTransit(c, h.auditUseCase, "transit_decrypt", name, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.PlaintextResponse{
		Plaintext: base64.StdEncoding.EncodeToString(plaintext),
	})
}

// RewrapHandler re-encrypts an envelope under the current key version
// without exposing the plaintext.
// POST /v1/transit/rewrap/:name - Requires the encrypt permission.
func (h *CryptoHandler) RewrapHandler(c *gin.Context) {
	name := c.Param("name")

	var req dto.RewrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionEncrypt, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	ciphertext, err := h.transitKeyUseCase.Rewrap(c.Request.Context(), identity.TeamID, name, req.Ciphertext)
	auditTransit(c, h.auditUseCase, "transit_rewrap", name, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CiphertextResponse{Ciphertext: ciphertext})
}

// GenerateDataKeyHandler issues a fresh data key in plaintext and wrapped form.
// POST /v1/transit/datakey/:name - Requires the encrypt permission.
// SECURITY: The plaintext key is returned exactly once and never stored.
func (h *CryptoHandler) GenerateDataKeyHandler(c *gin.Context) {
	name := c.Param("name")

	if !httputil.Authorize(c, h.policyUseCase, transitAuthzPath(name), policyDomain.PermissionEncrypt, h.logger) {
		return
	}

	identity, _ := requestctx.IdentityFrom(c.Request.Context())
	dataKey, err := h.transitKeyUseCase.GenerateDataKey(c.Request.Context(), identity.TeamID, name)
	auditTransit(c, h.auditUseCase, "transit_generate_data_key", name, nil, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DataKeyResponse{
		Plaintext:  dataKey.PlaintextBase64,
		Ciphertext: dataKey.Wrapped,
	})
}
