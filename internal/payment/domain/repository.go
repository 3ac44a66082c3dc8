package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoiceIfAbsent(ctx context.Context, db *gorm.DB, invoice *BillingInvoice) (bool, error)
	InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *BillingLedgerEntry) error
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) error
	InsertWebhookEventIfAbsent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindInvoice(ctx context.Context, db *gorm.DB, tenantID, entity, providerTransactionID string) (*BillingInvoice, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, entity, providerTransactionID string, result ProcessingResult) (*WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, db *gorm.DB, filter WebhookEventFilter) ([]WebhookEvent, error)
}

type WebhookEventFilter struct {
	BillingEntity         string
	ProviderTransactionID string
	ProcessingResult      ProcessingResult
	Limit                 int
}
