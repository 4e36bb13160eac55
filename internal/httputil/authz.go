package httputil

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/vault/internal/errors"
	policyDomain "github.com/allisson/vault/internal/policy/domain"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	"github.com/allisson/vault/internal/requestctx"
)

// Authorize evaluates the caller's access to a path and permission. When the
// decision is anything but an allow it writes the error response and returns
// false; the handler must stop.
func Authorize(
	c *gin.Context,
	policies policyUsecase.PolicyUseCase,
	path, permission string,
	logger *slog.Logger,
) bool {
	identity, ok := requestctx.IdentityFrom(c.Request.Context())
	if !ok {
		HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "no identity in request context"), logger)
		return false
	}

	subject := policyDomain.Subject{
		Type:   policyDomain.SubjectTypeUser,
		ID:     identity.SubjectID,
		TeamID: identity.TeamID,
	}
	if identity.SubjectType == requestctx.SubjectService {
		subject.Type = policyDomain.SubjectTypeService
	}

	decision, err := policies.Evaluate(c.Request.Context(), subject, path, permission)
	if err != nil {
		HandleErrorGin(c, err, logger)
		return false
	}

	if !decision.Allowed {
		HandleErrorGin(c, apperrors.Wrap(apperrors.ErrForbidden, decision.Reason), logger)
		return false
	}

	return true
}
