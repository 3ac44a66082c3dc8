package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSecrets(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/webhooks/payments/:entity"),
		attribute.String("Webhook.Signature", "ts=1;h1=abc"),
		attribute.String("webhook.payload", "{}"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsOutermostMessage(t *testing.T) {
	err := fmt.Errorf("post provider transaction: %w", errors.New("insert billing_invoices: tenant_ks"))
	assert.EqualError(t, SafeError(err), "post provider transaction")
	assert.Nil(t, SafeError(nil))
}
