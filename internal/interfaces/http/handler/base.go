package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/interfaces/http/dto"
	"github.com/tymon3568/anthill-pricing/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getTenantID(c *gin.Context) (uuid.UUID, error) {
	if id, ok := middleware.GetTenantID(c); ok {
		return id, nil
	}
	return uuid.Nil, errors.New("tenant ID not found in context")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Error sends an error response with an explicit status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c), false))
}

// DomainError maps an engine error onto the wire: the domain code becomes
// the response code, the code picks the status, and transient failures are
// flagged retryable.
func (h *BaseHandler) DomainError(c *gin.Context, err error) {
	code := dto.ErrCodeInternal
	message := "Internal server error"

	switch {
	case errors.Is(err, shared.ErrNotFound):
		code = dto.ErrCodeNotFound
		message = shared.ErrNotFound.Message
	case errors.Is(err, pricing.ErrCurrencyMismatch):
		code = "CURRENCY_MISMATCH"
		message = "Operation mixes two currencies"
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			code = domainErr.Code
			message = domainErr.Message
		}
	}

	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
		code, message, middleware.GetRequestID(c), pricing.IsRetryable(err)))
}
