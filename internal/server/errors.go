package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "validation error",
		}
	case errors.Is(err, billingdomain.ErrPermissionDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "permission_denied",
			Message: "permission denied",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    notFoundCode(err),
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrTenantRequired),
		errors.Is(err, billingdomain.ErrActorRequired),
		errors.Is(err, billingdomain.ErrPriceIDRequired),
		errors.Is(err, billingdomain.ErrOrderIDRequired),
		errors.Is(err, billingdomain.ErrTenantInvalid),
		errors.Is(err, billingdomain.ErrActorInvalid),
		errors.Is(err, billingdomain.ErrOrderInvalid),
		errors.Is(err, billingdomain.ErrChannelInvalid),
		errors.Is(err, billingdomain.ErrReturnURLInvalid),
		errors.Is(err, billingdomain.ErrReturnURLHostNotAllowed),
		errors.Is(err, billingdomain.ErrPriceIDInvalid):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, billingdomain.ErrOrderNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundCode(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "not_found"
	}
	return err.Error()
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, billingdomain.ErrOrderPaidCannotCancel),
		errors.Is(err, billingdomain.ErrOrderAlreadyClosed):
		return true
	default:
		return false
	}
}
