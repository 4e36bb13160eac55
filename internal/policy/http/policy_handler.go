// Package http provides HTTP handlers for access-policy management. Policy
// management is a control-plane surface restricted to user subjects; the
// policies themselves govern the data plane.
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
	customValidation "github.com/allisson/vault/internal/validation"
)

// resourceTypePolicy tags audit records emitted by this handler.
const resourceTypePolicy = "access_policy"

// PolicyHandler handles HTTP requests for policy and binding management.
type PolicyHandler struct {
	policyUseCase policyUsecase.PolicyUseCase
	auditUseCase  auditUsecase.AuditUseCase
	logger        *slog.Logger
}

// NewPolicyHandler creates a new policy handler with required dependencies.
func NewPolicyHandler(
	policyUseCase policyUsecase.PolicyUseCase,
	auditUseCase auditUsecase.AuditUseCase,
	logger *slog.Logger,
) *PolicyHandler {
	return &PolicyHandler{
		policyUseCase: policyUseCase,
		auditUseCase:  auditUseCase,
		logger:        logger,
	}
}

// CreatePolicyRequest contains the parameters for creating a policy.
type CreatePolicyRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	PathPattern string   `json:"path_pattern"`
	Effect      string   `json:"effect"`
	Permissions []string `json:"permissions"`
}

// Validate checks if the create policy request is valid.
func (r *CreatePolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.PathPattern,
			validation.Required,
			customValidation.PathPattern,
		),
		validation.Field(&r.Effect,
			validation.Required,
			validation.In(string(policyDomain.EffectAllow), string(policyDomain.EffectDeny)),
		),
		validation.Field(&r.Permissions,
			validation.Required,
			validation.Length(1, 0),
		),
	)
}

// UpdatePolicyRequest contains partial updates for a policy.
type UpdatePolicyRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	PathPattern *string  `json:"path_pattern"`
	Effect      *string  `json:"effect"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"is_active"`
}

// Validate checks if the update policy request is valid.
func (r *UpdatePolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PathPattern, customValidation.PathPattern),
		validation.Field(&r.Effect,
			validation.In(string(policyDomain.EffectAllow), string(policyDomain.EffectDeny)),
		),
	)
}

// CreateBindingRequest attaches a policy to a subject.
type CreateBindingRequest struct {
	BindingType string `json:"binding_type"`
	TargetID    string `json:"target_id"`
}

// Validate checks if the create binding request is valid.
func (r *CreateBindingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BindingType,
			validation.Required,
			validation.In(
				string(policyDomain.BindingTypeUser),
				string(policyDomain.BindingTypeTeam),
				string(policyDomain.BindingTypeService),
			),
		),
		validation.Field(&r.TargetID, validation.Required, validation.By(uuidRule)),
	)
}

// EvaluateRequest asks for an access decision on behalf of a subject.
type EvaluateRequest struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Path        string `json:"path"`
	Permission  string `json:"permission"`
}

// Validate checks if the evaluate request is valid.
func (r *EvaluateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SubjectType,
			validation.Required,
			validation.In(
				string(policyDomain.SubjectTypeUser),
				string(policyDomain.SubjectTypeService),
			),
		),
		validation.Field(&r.SubjectID, validation.Required, validation.By(uuidRule)),
		validation.Field(&r.Path, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Permission, validation.Required, customValidation.NotBlank),
	)
}

func uuidRule(value interface{}) error {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// PolicyResponse represents an access policy in API responses.
type PolicyResponse struct {
	ID              string   `json:"id"`
	TeamID          string   `json:"team_id"`
	Name            string   `json:"name"`
	Description     *string  `json:"description,omitempty"`
	PathPattern     string   `json:"path_pattern"`
	Effect          string   `json:"effect"`
	Permissions     []string `json:"permissions"`
	IsActive        bool     `json:"is_active"`
	CreatedByUserID string   `json:"created_by_user_id"`
}

// BindingResponse represents a policy binding in API responses.
type BindingResponse struct {
	ID          string `json:"id"`
	PolicyID    string `json:"policy_id"`
	BindingType string `json:"binding_type"`
	TargetID    string `json:"target_id"`
	IsActive    bool   `json:"is_active"`
}

// DecisionResponse represents an access decision in API responses.
type DecisionResponse struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason"`
	PolicyID   *string `json:"policy_id,omitempty"`
	PolicyName *string `json:"policy_name,omitempty"`
}

func mapPolicyToResponse(policy *policyDomain.AccessPolicy) PolicyResponse {
	return PolicyResponse{
		ID:              policy.ID.String(),
		TeamID:          policy.TeamID.String(),
		Name:            policy.Name,
		Description:     policy.Description,
		PathPattern:     policy.PathPattern,
		Effect:          string(policy.Effect),
		Permissions:     policy.Permissions,
		IsActive:        policy.IsActive,
		CreatedByUserID: policy.CreatedByUserID.String(),
	}
}

func mapBindingToResponse(binding *policyDomain.PolicyBinding) BindingResponse {
	return BindingResponse{
		ID:          binding.ID.String(),
		PolicyID:    binding.PolicyID.String(),
		BindingType: string(binding.BindingType),
		TargetID:    binding.TargetID.String(),
		IsActive:    binding.IsActive,
	}
}

// CreatePolicyHandler creates a new access policy.
// POST /v1/policies - User subjects only.
func (h *PolicyHandler) CreatePolicyHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := policyDomain.CreatePolicyInput{
		TeamID:          identity.TeamID,
		Name:            req.Name,
		Description:     req.Description,
		PathPattern:     req.PathPattern,
		Effect:          policyDomain.Effect(req.Effect),
		Permissions:     req.Permissions,
		CreatedByUserID: identity.SubjectID,
	}

	policy, err := h.policyUseCase.CreatePolicy(c.Request.Context(), input)
	h.audit(c, "policy_create", policyID(policy), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapPolicyToResponse(policy))
}

// GetPolicyHandler retrieves a policy by id.
// GET /v1/policies/:id - User subjects only.
func (h *PolicyHandler) GetPolicyHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	id, ok := h.idParam(c)
	if !ok {
		return
	}

	policy, ok := h.teamPolicy(c, identity, id)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, mapPolicyToResponse(policy))
}

// ListPoliciesHandler retrieves the team's policies.
// GET /v1/policies?active=true&offset=0&limit=50 - User subjects only.
func (h *PolicyHandler) ListPoliciesHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	activeOnly := c.Query("active") == "true"
	policies, err := h.policyUseCase.ListPolicies(c.Request.Context(), identity.TeamID, activeOnly, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	data := make([]PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		data = append(data, mapPolicyToResponse(policy))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

// UpdatePolicyHandler applies a partial update to a policy.
// PATCH /v1/policies/:id - User subjects only.
func (h *PolicyHandler) UpdatePolicyHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if _, ok := h.teamPolicy(c, identity, id); !ok {
		return
	}

	var req UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := policyDomain.UpdatePolicyInput{
		Name:        req.Name,
		Description: req.Description,
		PathPattern: req.PathPattern,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	}
	if req.Effect != nil {
		effect := policyDomain.Effect(*req.Effect)
		input.Effect = &effect
	}

	policy, err := h.policyUseCase.UpdatePolicy(c.Request.Context(), id, input)
	h.audit(c, "policy_update", policyID(policy), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapPolicyToResponse(policy))
}

// DeletePolicyHandler removes a policy and its bindings.
// DELETE /v1/policies/:id - User subjects only.
// Returns 204 No Content.
func (h *PolicyHandler) DeletePolicyHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if _, ok := h.teamPolicy(c, identity, id); !ok {
		return
	}

	err := h.policyUseCase.DeletePolicy(c.Request.Context(), id)
	idStr := id.String()
	h.audit(c, "policy_delete", &idStr, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// CreateBindingHandler attaches a policy to a subject.
// POST /v1/policies/:id/bindings - User subjects only.
func (h *PolicyHandler) CreateBindingHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if _, ok := h.teamPolicy(c, identity, id); !ok {
		return
	}

	var req CreateBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	// Validated above
	targetID, _ := uuid.Parse(req.TargetID)

	binding, err := h.policyUseCase.CreateBinding(
		c.Request.Context(),
		id,
		policyDomain.BindingType(req.BindingType),
		targetID,
	)
	h.audit(c, "policy_binding_create", bindingID(binding), err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, mapBindingToResponse(binding))
}

// ListBindingsHandler retrieves all bindings of a policy.
// GET /v1/policies/:id/bindings - User subjects only.
func (h *PolicyHandler) ListBindingsHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	id, ok := h.idParam(c)
	if !ok {
		return
	}
	if _, ok := h.teamPolicy(c, identity, id); !ok {
		return
	}

	bindings, err := h.policyUseCase.ListBindingsByPolicy(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	data := make([]BindingResponse, 0, len(bindings))
	for _, binding := range bindings {
		data = append(data, mapBindingToResponse(binding))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

// DeleteBindingHandler detaches a binding.
// DELETE /v1/policies/:id/bindings/:bindingId - User subjects only.
// Returns 204 No Content.
func (h *PolicyHandler) DeleteBindingHandler(c *gin.Context) {
	if _, ok := h.requireUser(c); !ok {
		return
	}

	bindingUUID, err := uuid.Parse(c.Param("bindingId"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid binding id"), h.logger)
		return
	}

	err = h.policyUseCase.DeleteBinding(c.Request.Context(), bindingUUID)
	idStr := bindingUUID.String()
	h.audit(c, "policy_binding_delete", &idStr, err)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// EvaluateHandler computes an access decision for a subject within the
// caller's team. Useful for debugging policy sets before relying on them.
// POST /v1/policies/evaluate - User subjects only.
func (h *PolicyHandler) EvaluateHandler(c *gin.Context) {
	identity, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	// Validated above
	subjectID, _ := uuid.Parse(req.SubjectID)
	subject := policyDomain.Subject{
		Type:   policyDomain.SubjectType(req.SubjectType),
		ID:     subjectID,
		TeamID: identity.TeamID,
	}

	decision, err := h.policyUseCase.Evaluate(c.Request.Context(), subject, req.Path, req.Permission)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := DecisionResponse{
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
		PolicyName: decision.PolicyName,
	}
	if decision.PolicyID != nil {
		idStr := decision.PolicyID.String()
		response.PolicyID = &idStr
	}

	c.JSON(http.StatusOK, response)
}

// requireUser rejects service subjects; policy management is user-only.
func (h *PolicyHandler) requireUser(c *gin.Context) (requestctx.Identity, bool) {
	identity, ok := requestctx.IdentityFrom(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "no identity in request context"), h.logger)
		return identity, false
	}
	if identity.SubjectType != requestctx.SubjectUser {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrForbidden, "policy management requires a user subject"), h.logger)
		return identity, false
	}
	return identity, true
}

// teamPolicy loads a policy, hiding policies of other teams behind a 404.
func (h *PolicyHandler) teamPolicy(
	c *gin.Context,
	identity requestctx.Identity,
	id uuid.UUID,
) (*policyDomain.AccessPolicy, bool) {
	policy, err := h.policyUseCase.GetPolicy(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return nil, false
	}
	if policy.TeamID != identity.TeamID {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrNotFound, "policy not found"), h.logger)
		return nil, false
	}
	return policy, true
}

// idParam parses the :id path parameter.
func (h *PolicyHandler) idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid policy id"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// audit emits a fire-and-forget audit record for one policy operation.
func (h *PolicyHandler) audit(c *gin.Context, operation string, resourceID *string, err error) {
	resourceType := resourceTypePolicy
	record := auditDomain.Record{
		Operation:    operation,
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

func policyID(policy *policyDomain.AccessPolicy) *string {
	if policy == nil {
		return nil
	}
	id := policy.ID.String()
	return &id
}

func bindingID(binding *policyDomain.PolicyBinding) *string {
	if binding == nil {
		return nil
	}
	id := binding.ID.String()
	return &id
}
