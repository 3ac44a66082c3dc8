package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obstracing "github.com/smallbiznis/memberledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
)

const webhookOutcomeKey = obstracing.OutcomeKey

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	entity := strings.TrimSpace(c.Param("entity"))

	body := c.Request.Body
	if s.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.maxBodyBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			AbortWithError(c, paymentdomain.ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.IngestWebhook(c.Request.Context(), entity, payload, c.Request.Header)
	if result.Outcome != "" {
		c.Set(webhookOutcomeKey, string(result.Outcome))
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	switch result.Outcome {
	case paymentdomain.OutcomeDuplicate:
		c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
	case paymentdomain.OutcomeIgnored:
		c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
