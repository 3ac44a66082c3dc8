package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/memberledger/internal/audit/domain"
	"github.com/smallbiznis/memberledger/internal/clock"
	obsmetrics "github.com/smallbiznis/memberledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
	"github.com/smallbiznis/memberledger/pkg/db"
	"github.com/smallbiznis/memberledger/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Clock      clock.Clock
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Poster {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// Post writes the invoice, its ledger entry and the success record in one
// transaction. The invoice insert is the only dedup point: when the
// (tenant, entity, provider transaction) key is taken, nothing else is
// written and OutcomeDuplicate is returned.
func (s *Service) Post(ctx context.Context, auth paymentdomain.Authorization, event *paymentdomain.TransactionEvent) (paymentdomain.Outcome, error) {
	if err := validatePosting(auth, event); err != nil {
		return "", err
	}

	now := s.clock.Now().UTC()
	invoice := &paymentdomain.BillingInvoice{
		ID:                    s.genID.Generate(),
		TenantID:              auth.TenantID,
		BillingEntity:         auth.EntityCode,
		ProviderTransactionID: event.ProviderTransactionID,
		UserID:                optionalString(auth.UserID),
		AmountTotal:           event.Amount,
		Currency:              event.Currency,
		OccurredAt:            event.OccurredAt.UTC(),
		CreatedAt:             now,
	}

	outcome := paymentdomain.OutcomePosted
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, auth.TenantID); err != nil {
			return err
		}
		inserted, err := s.repo.InsertInvoiceIfAbsent(ctx, tx, invoice)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = paymentdomain.OutcomeDuplicate
			return nil
		}

		entry := &paymentdomain.BillingLedgerEntry{
			ID:                    s.genID.Generate(),
			TenantID:              invoice.TenantID,
			BillingEntity:         invoice.BillingEntity,
			ProviderTransactionID: invoice.ProviderTransactionID,
			InvoiceID:             invoice.ID,
			UserID:                invoice.UserID,
			EntryType:             paymentdomain.LedgerEntryTypePayment,
			Direction:             paymentdomain.LedgerEntryDirectionCredit,
			Amount:                invoice.AmountTotal,
			Currency:              invoice.Currency,
			OccurredAt:            invoice.OccurredAt,
			CreatedAt:             now,
		}
		if err := s.repo.InsertLedgerEntry(ctx, tx, entry); err != nil {
			return err
		}

		record := s.webhookEvent(auth, event, paymentdomain.ProcessingResultSuccess, now)
		return s.repo.InsertWebhookEvent(ctx, tx, record)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent delivery committed the same key first.
			outcome = paymentdomain.OutcomeDuplicate
		} else {
			s.log.Error("failed to post provider transaction",
				zap.String("entity", auth.EntityCode),
				zap.String("provider_transaction_id", event.ProviderTransactionID),
				zap.Error(err),
			)
			return "", fmt.Errorf("post provider transaction: %w", err)
		}
	}

	if outcome == paymentdomain.OutcomeDuplicate {
		s.log.Info("provider transaction already posted",
			zap.String("entity", auth.EntityCode),
			zap.String("tenant_id", auth.TenantID),
			zap.String("provider_transaction_id", event.ProviderTransactionID),
			zap.String("event_id", event.EventID),
		)
		return outcome, nil
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerPosting(ctx, auth.EntityCode, event.Currency)
	}
	s.writeAuditLog(ctx, "webhook.posted", auth, event, map[string]any{
		"invoice_id":   invoice.ID.String(),
		"amount_total": invoice.AmountTotal.String(),
		"currency":     invoice.Currency,
	})
	return outcome, nil
}

// RecordRejection stores the error record for an event whose entity is not
// live. Redeliveries of the same transaction find the record in place and
// write nothing.
func (s *Service) RecordRejection(ctx context.Context, auth paymentdomain.Authorization, event *paymentdomain.TransactionEvent) error {
	if err := validatePosting(auth, event); err != nil {
		return err
	}

	record := s.webhookEvent(auth, event, paymentdomain.ProcessingResultError, s.clock.Now().UTC())
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, auth.TenantID); err != nil {
			return err
		}
		var err error
		inserted, err = s.repo.InsertWebhookEventIfAbsent(ctx, tx, record)
		return err
	})
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return fmt.Errorf("record rejected webhook: %w", err)
	}
	if !inserted {
		return nil
	}

	s.writeAuditLog(ctx, "webhook.rejected_inactive", auth, event, map[string]any{
		"webhook_event_id": record.ID.String(),
	})
	return nil
}

func (s *Service) webhookEvent(
	auth paymentdomain.Authorization,
	event *paymentdomain.TransactionEvent,
	result paymentdomain.ProcessingResult,
	receivedAt time.Time,
) *paymentdomain.WebhookEvent {
	tenantID := auth.TenantID
	return &paymentdomain.WebhookEvent{
		ID:                    s.genID.Generate(),
		TenantID:              &tenantID,
		BillingEntity:         auth.EntityCode,
		Provider:              event.Provider,
		EventID:               event.EventID,
		EventType:             event.EventType,
		ProviderTransactionID: event.ProviderTransactionID,
		ProcessingScopeKey:    auth.ProcessingScopeKey,
		ProcessingResult:      result,
		Payload:               datatypes.JSON(event.RawPayload),
		ReceivedAt:            receivedAt,
	}
}

func validatePosting(auth paymentdomain.Authorization, event *paymentdomain.TransactionEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(auth.EntityCode) == "" ||
		strings.TrimSpace(auth.TenantID) == "" ||
		strings.TrimSpace(auth.ProcessingScopeKey) == "" {
		return paymentdomain.ErrInvalidAuthorization
	}
	if strings.TrimSpace(event.ProviderTransactionID) == "" || strings.TrimSpace(event.EventID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.Amount.IsNegative() {
		return paymentdomain.ErrInvalidAmount
	}
	if len(strings.TrimSpace(event.Currency)) != 3 {
		return paymentdomain.ErrInvalidCurrency
	}
	if len(event.RawPayload) == 0 {
		return paymentdomain.ErrInvalidPayload
	}
	return nil
}

func (s *Service) writeAuditLog(ctx context.Context, action string, auth paymentdomain.Authorization, event *paymentdomain.TransactionEvent, extra map[string]any) {
	if s.auditSvc == nil {
		s.log.Warn("audit service unavailable for webhook event", zap.String("action", action))
		return
	}
	metadata := map[string]any{
		"provider":                event.Provider,
		"event_id":                event.EventID,
		"event_type":              event.EventType,
		"billing_entity":          auth.EntityCode,
		"processing_scope_key":    auth.ProcessingScopeKey,
		"provider_transaction_id": event.ProviderTransactionID,
		"occurred_at":             event.OccurredAt.UTC().Format(time.RFC3339),
	}
	if auth.UserID != "" {
		metadata["user_id"] = auth.UserID
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	tenantID := auth.TenantID
	actorID := auth.EntityCode
	targetID := event.ProviderTransactionID
	if err := s.auditSvc.AuditLog(ctx, &tenantID, string(auditdomain.ActorTypeProvider), &actorID, action, "provider_transaction", &targetID, metadata); err != nil {
		s.log.Warn("failed to write webhook audit log", zap.String("action", action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
