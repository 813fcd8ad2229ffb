package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"companion-saas/backend/internal/models"
	"companion-saas/backend/internal/service"
	"companion-saas/backend/pkg/auth"
	"companion-saas/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AnonymousDisabledDetails explains a 401 caused by the anonymous creation policy
const AnonymousDisabledDetails = "anonymous companion creation is disabled; operators can enable it with AUTH_ALLOW_ANONYMOUS=true"

// CompanionCreator is the part of service.CompanionService used by the handler
type CompanionCreator interface {
	CreateCompanion(ctx context.Context, identity auth.Identity, req *models.CreateCompanionRequest) (*models.Companion, error)
}

type CompanionHandler struct {
	service CompanionCreator
}

func NewCompanionHandler(service CompanionCreator) *CompanionHandler {
	return &CompanionHandler{service: service}
}

// RegisterRoutesV1 mounts the companion routes on the /api/v1 group
func (h *CompanionHandler) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.POST("/companions", h.CreateCompanion)
}

// CreateCompanion accepts a JSON or form-encoded companion and creates it on
// behalf of the caller resolved by the identity middleware
func (h *CompanionHandler) CreateCompanion(c *gin.Context) {
	var req models.CreateCompanionRequest
	if err := c.ShouldBindWith(&req, bindingFor(c.Request.Method, c.ContentType())); err != nil {
		if errors.IsBodyTooLarge(err) {
			c.Error(errors.NewBodyTooLargeError().Wrap(err))
			return
		}
		c.Error(errors.NewBadRequestError("INVALID_INPUT", "Invalid companion").WithDetails(err.Error()).Wrap(err))
		return
	}

	identity := auth.FromContext(c.Request.Context())

	companion, err := h.service.CreateCompanion(c.Request.Context(), identity, &req)
	if err != nil {
		c.Error(toAppError(err))
		return
	}

	c.JSON(http.StatusCreated, companion)
}

func toAppError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, service.ErrInvalidCompanion):
		return errors.NewBadRequestError("INVALID_INPUT", err.Error()).Wrap(err)
	case stderrors.Is(err, service.ErrUnauthenticated):
		return errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required").
			WithDetails(AnonymousDisabledDetails).
			Wrap(err)
	case stderrors.Is(err, service.ErrCreationFailed):
		return errors.NewBadGatewayError("CREATION_FAILED", err.Error()).Wrap(err)
	default:
		return errors.FromError(err)
	}
}
