package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingentitydomain "github.com/smallbiznis/memberledger/internal/billingentity/domain"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

const (
	msgUnauthorized   = "Unauthorized"
	msgEntityMismatch = "Webhook entity mismatch"
	msgInvalidPayload = "Invalid webhook payload"
	msgUnknownEntity  = "Unknown billing entity"
	msgTooLarge       = "Payload Too Large"
	msgInvalidRequest = "Invalid request"
	msgNotFound       = "Not Found"
	msgInternal       = "Internal Server Error"
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

		status, message := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError is the single place webhook errors become HTTP responses. Only
// dark entities and storage failures answer 5xx, so the provider retries
// exactly those.
func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, msgInternal
	case errors.Is(err, paymentdomain.ErrEntityMismatch):
		return http.StatusUnauthorized, msgEntityMismatch
	case paymentdomain.IsSignatureError(err):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, paymentdomain.ErrEntityInactive):
		return http.StatusInternalServerError, msgInternal
	case errors.Is(err, paymentdomain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case paymentdomain.IsPayloadError(err):
		return http.StatusBadRequest, msgInvalidPayload
	case errors.Is(err, billingentitydomain.ErrUnknownEntity):
		return http.StatusNotFound, msgUnknownEntity
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, msgInvalidRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// classifyErrorForLog returns (error_type, error_code) for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, _ := mapError(err)
	errorType := "internal_error"
	switch status {
	case http.StatusUnauthorized:
		errorType = "unauthorized"
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		errorType = "validation_error"
	case http.StatusNotFound:
		errorType = "not_found"
	}

	code := errorType
	for _, sentinel := range []error{
		paymentdomain.ErrInvalidSignature,
		paymentdomain.ErrSignatureExpired,
		paymentdomain.ErrEntityMismatch,
		paymentdomain.ErrEntityInactive,
		paymentdomain.ErrPayloadTooLarge,
		paymentdomain.ErrInvalidPayload,
		paymentdomain.ErrInvalidEvent,
		paymentdomain.ErrInvalidAmount,
		paymentdomain.ErrInvalidCurrency,
		billingentitydomain.ErrUnknownEntity,
	} {
		if errors.Is(err, sentinel) {
			code = sentinel.Error()
			break
		}
	}
	return errorType, code
}
