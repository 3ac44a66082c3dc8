package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/memberledger/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var (
	invoiceKeyColumns = []clause.Column{
		{Name: "tenant_id"},
		{Name: "billing_entity"},
		{Name: "provider_transaction_id"},
	}
	webhookEventKeyColumns = []clause.Column{
		{Name: "billing_entity"},
		{Name: "provider_transaction_id"},
		{Name: "processing_result"},
	}
)

// InsertInvoiceIfAbsent reports false when an invoice already holds the
// (tenant, entity, provider transaction) key. The unique index decides, so
// concurrent callers cannot both win.
func (r *repo) InsertInvoiceIfAbsent(ctx context.Context, db *gorm.DB, invoice *domain.BillingInvoice) (bool, error) {
	if invoice == nil {
		return false, domain.ErrInvalidEvent
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: invoiceKeyColumns, DoNothing: true}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *domain.BillingLedgerEntry) error {
	if entry == nil {
		return domain.ErrInvalidEvent
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) InsertWebhookEventIfAbsent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	if event == nil {
		return false, domain.ErrInvalidEvent
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: webhookEventKeyColumns, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, tenantID, entity, providerTransactionID string) (*domain.BillingInvoice, error) {
	var item domain.BillingInvoice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND billing_entity = ? AND provider_transaction_id = ?", tenantID, entity, providerTransactionID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, db *gorm.DB, entity, providerTransactionID string, result domain.ProcessingResult) (*domain.WebhookEvent, error) {
	var item domain.WebhookEvent
	err := db.WithContext(ctx).
		Where("billing_entity = ? AND provider_transaction_id = ? AND processing_result = ?", entity, providerTransactionID, result).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListWebhookEvents(ctx context.Context, db *gorm.DB, filter domain.WebhookEventFilter) ([]domain.WebhookEvent, error) {
	stmt := db.WithContext(ctx).Model(&domain.WebhookEvent{})
	if filter.BillingEntity != "" {
		stmt = stmt.Where("billing_entity = ?", filter.BillingEntity)
	}
	if filter.ProviderTransactionID != "" {
		stmt = stmt.Where("provider_transaction_id = ?", filter.ProviderTransactionID)
	}
	if filter.ProcessingResult != "" {
		stmt = stmt.Where("processing_result = ?", filter.ProcessingResult)
	}
	stmt = stmt.Order("received_at asc, id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var items []domain.WebhookEvent
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
