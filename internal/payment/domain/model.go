package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ProcessingResult string

const (
	ProcessingResultSuccess   ProcessingResult = "success"
	ProcessingResultDuplicate ProcessingResult = "duplicate"
	ProcessingResultError     ProcessingResult = "error"
)

// WebhookEvent is the forensic record of a processed provider transaction.
// One row exists per (billing entity, provider transaction, result); replays
// never rewrite it, so EventID keeps the first delivery id seen.
type WebhookEvent struct {
	ID                    snowflake.ID     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TenantID              *string          `json:"tenant_id" gorm:"type:varchar(191);index"`
	BillingEntity         string           `json:"billing_entity" gorm:"type:varchar(64);not null;uniqueIndex:ux_webhook_events_entity_txn_result,priority:1"`
	Provider              string           `json:"provider" gorm:"type:varchar(64);not null"`
	EventID               string           `json:"event_id" gorm:"type:varchar(191);not null"`
	EventType             string           `json:"event_type" gorm:"type:varchar(128);not null"`
	ProviderTransactionID string           `json:"provider_transaction_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_entity_txn_result,priority:2"`
	ProcessingScopeKey    string           `json:"processing_scope_key" gorm:"type:varchar(128);not null;index"`
	ProcessingResult      ProcessingResult `json:"processing_result" gorm:"type:varchar(16);not null;uniqueIndex:ux_webhook_events_entity_txn_result,priority:3"`
	Payload               datatypes.JSON   `json:"payload"`
	ReceivedAt            time.Time        `json:"received_at" gorm:"not null"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// BillingInvoice is unique per (tenant, billing entity, provider transaction).
type BillingInvoice struct {
	ID                    snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TenantID              string          `json:"tenant_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_invoices_tenant_entity_txn,priority:1"`
	BillingEntity         string          `json:"billing_entity" gorm:"type:varchar(64);not null;uniqueIndex:ux_billing_invoices_tenant_entity_txn,priority:2"`
	ProviderTransactionID string          `json:"provider_transaction_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_invoices_tenant_entity_txn,priority:3"`
	UserID                *string         `json:"user_id" gorm:"type:varchar(191)"`
	AmountTotal           decimal.Decimal `json:"amount_total" gorm:"type:numeric(20,4);not null"`
	Currency              string          `json:"currency" gorm:"type:varchar(3);not null"`
	OccurredAt            time.Time       `json:"occurred_at" gorm:"not null"`
	CreatedAt             time.Time       `json:"created_at" gorm:"not null"`
}

func (BillingInvoice) TableName() string { return "billing_invoices" }

type LedgerEntryType string

const LedgerEntryTypePayment LedgerEntryType = "payment"

type LedgerEntryDirection string

const LedgerEntryDirectionCredit LedgerEntryDirection = "credit"

// BillingLedgerEntry shares the invoice key and is written in the same
// transaction as its invoice.
type BillingLedgerEntry struct {
	ID                    snowflake.ID         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TenantID              string               `json:"tenant_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_ledger_entries_tenant_entity_txn,priority:1"`
	BillingEntity         string               `json:"billing_entity" gorm:"type:varchar(64);not null;uniqueIndex:ux_billing_ledger_entries_tenant_entity_txn,priority:2"`
	ProviderTransactionID string               `json:"provider_transaction_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_ledger_entries_tenant_entity_txn,priority:3"`
	InvoiceID             snowflake.ID         `json:"invoice_id" gorm:"not null;index"`
	UserID                *string              `json:"user_id" gorm:"type:varchar(191)"`
	EntryType             LedgerEntryType      `json:"entry_type" gorm:"type:varchar(32);not null"`
	Direction             LedgerEntryDirection `json:"direction" gorm:"type:varchar(16);not null"`
	Amount                decimal.Decimal      `json:"amount" gorm:"type:numeric(20,4);not null"`
	Currency              string               `json:"currency" gorm:"type:varchar(3);not null"`
	OccurredAt            time.Time            `json:"occurred_at" gorm:"not null"`
	CreatedAt             time.Time            `json:"created_at" gorm:"not null"`
}

func (BillingLedgerEntry) TableName() string { return "billing_ledger_entries" }

const EventTypeTransactionCompleted = "transaction.completed"

// TransactionEvent is the normalized form of a provider webhook.
type TransactionEvent struct {
	Provider              string
	EventID               string
	EventType             string
	ProviderTransactionID string
	Status                string
	Amount                decimal.Decimal
	Currency              string
	UserID                string
	TenantClaim           string
	OccurredAt            time.Time
	RawPayload            []byte
}

// Authorization is the gate's verdict on which tenant an event belongs to.
type Authorization struct {
	EntityCode         string
	TenantID           string
	ProcessingScopeKey string
	UserID             string
}

type Outcome string

const (
	OutcomePosted    Outcome = "posted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
)

// Result reports what happened to one webhook delivery.
type Result struct {
	Outcome               Outcome
	EntityCode            string
	TenantID              string
	EventID               string
	ProviderTransactionID string
}
