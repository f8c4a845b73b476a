package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	cartdomain "github.com/smallbiznis/toolvault/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	orderdomain "github.com/smallbiznis/toolvault/internal/order/domain"
	paymentdomain "github.com/smallbiznis/toolvault/internal/payment/domain"
	renewaldomain "github.com/smallbiznis/toolvault/internal/renewal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: field, Code: code, Message: message},
		},
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var ptr *ValidationErrors
	if errors.As(err, &ptr) {
		return ptr
	}
	var val ValidationErrors
	if errors.As(err, &val) {
		return &val
	}
	return nil
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type: "unauthorized", Message: "authentication required",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type: "forbidden", Message: "access denied",
		}

	case errors.Is(err, catalogdomain.ErrToolNotFound),
		errors.Is(err, catalogdomain.ErrLicenseNotFound),
		errors.Is(err, pooldomain.ErrAccountNotFound),
		errors.Is(err, cartdomain.ErrCartNotFound),
		errors.Is(err, cartdomain.ErrItemNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type: "not_found", Message: "resource not found",
		}

	case errors.Is(err, catalogdomain.ErrSlugAlreadyExists):
		return http.StatusConflict, errorPayload{
			Type: "conflict", Message: "slug already exists",
		}
	case errors.Is(err, catalogdomain.ErrLicenseReferenced):
		return http.StatusConflict, errorPayload{
			Type: "conflict", Message: "license is referenced by existing orders",
		}
	case errors.Is(err, orderdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type: "conflict", Message: "order state does not allow this operation",
		}
	case errors.Is(err, pooldomain.ErrAccountNotAssigned):
		return http.StatusConflict, errorPayload{
			Type: "conflict", Message: "license account is not assigned",
		}

	case errors.Is(err, pooldomain.ErrOutOfStock):
		return http.StatusConflict, errorPayload{
			Type: "out_of_stock", Message: "not enough license accounts available",
		}

	case errors.Is(err, orderdomain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, errorPayload{
			Type: "unprocessable", Message: "cart is empty",
		}
	case errors.Is(err, orderdomain.ErrCurrencyMismatch):
		return http.StatusUnprocessableEntity, errorPayload{
			Type: "unprocessable", Message: "cart items use mixed currencies",
		}

	case errors.Is(err, cartdomain.ErrInvalidQuantity),
		errors.Is(err, pooldomain.ErrInvalidQuantity),
		errors.Is(err, pooldomain.ErrInvalidDate),
		errors.Is(err, pooldomain.ErrInvalidCredential),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidLogin),
		errors.Is(err, catalogdomain.ErrInvalidDuration),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, renewaldomain.ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type: "validation_error", Message: err.Error(),
		}

	case errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, errorPayload{
			Type: "not_found", Message: "unknown payment provider",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type: "unauthorized", Message: "webhook signature verification failed",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type: "validation_error", Message: "malformed webhook payload",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type: "internal_error", Message: "internal server error",
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal", "internal_error"
	}
	return "client_error", payload.Type
}
