package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/smallbiznis/memberledger/internal/clock"
)

// Service ingests raw provider webhooks for a billing entity channel.
type Service interface {
	IngestWebhook(ctx context.Context, entityCode string, payload []byte, headers http.Header) (Result, error)
}

// Poster turns authorized events into invoices and ledger entries exactly once.
type Poster interface {
	Post(ctx context.Context, auth Authorization, event *TransactionEvent) (Outcome, error)
	RecordRejection(ctx context.Context, auth Authorization, event *TransactionEvent) error
}

type AdapterConfig struct {
	EntityCode string
	Secret     string
	Tolerance  time.Duration
	Clock      clock.Clock
}

type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*TransactionEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

var (
	ErrProviderNotFound     = errors.New("provider_not_found")
	ErrInvalidConfig        = errors.New("invalid_provider_config")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrSignatureExpired     = errors.New("signature_expired")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrEventIgnored         = errors.New("event_ignored")
	ErrPayloadTooLarge      = errors.New("payload_too_large")
	ErrInvalidAuthorization = errors.New("invalid_authorization")

	// ErrEntityMismatch means the payload claims a tenant other than the one
	// bound to the authenticated entity. Nothing is persisted.
	ErrEntityMismatch = errors.New("webhook_entity_mismatch")
	// ErrEntityInactive means the entity owns the channel but is not live.
	// The event is recorded as an error and never posted.
	ErrEntityInactive = errors.New("webhook_entity_inactive")
)

// IsPayloadError reports whether err describes a malformed webhook body.
func IsPayloadError(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidCurrency)
}

// IsSignatureError reports whether err is an authentication failure.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrSignatureExpired)
}
