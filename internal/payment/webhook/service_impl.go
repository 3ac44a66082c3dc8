package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	billingentitydomain "github.com/smallbiznis/memberledger/internal/billingentity/domain"
	"github.com/smallbiznis/memberledger/internal/clock"
	"github.com/smallbiznis/memberledger/internal/config"
	directorydomain "github.com/smallbiznis/memberledger/internal/directory/domain"
	obscontext "github.com/smallbiznis/memberledger/internal/observability/context"
	"github.com/smallbiznis/memberledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/memberledger/internal/observability/metrics"
	"github.com/smallbiznis/memberledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
	"github.com/smallbiznis/memberledger/internal/payment/gate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log            *zap.Logger
	Registry       billingentitydomain.Registry
	Adapters       *adapters.Registry
	Cfg            config.Config
	Clock          clock.Clock
	Poster         paymentdomain.Poster
	Directory      directorydomain.Service    `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics        `optional:"true"`
	WebhookMetrics *obsmetrics.WebhookMetrics `optional:"true"`
}

type Service struct {
	log            *zap.Logger
	registry       billingentitydomain.Registry
	adapters       *adapters.Registry
	provider       string
	tolerance      time.Duration
	maxBodyBytes   int64
	clock          clock.Clock
	poster         paymentdomain.Poster
	directory      directorydomain.Service
	obsMetrics     *obsmetrics.Metrics
	webhookMetrics *obsmetrics.WebhookMetrics
}

// NewService fails at startup when the configured provider has no adapter,
// rather than answering every delivery with a 500.
func NewService(p Params) (paymentdomain.Service, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	provider, err := p.Adapters.Resolve(p.Cfg.Webhook.Provider)
	if err != nil {
		return nil, err
	}

	return &Service{
		log:            p.Log.Named("payment.webhook"),
		registry:       p.Registry,
		adapters:       p.Adapters,
		provider:       provider,
		tolerance:      p.Cfg.Webhook.SignatureTolerance,
		maxBodyBytes:   p.Cfg.Webhook.MaxBodyBytes,
		clock:          clk,
		poster:         p.Poster,
		directory:      p.Directory,
		obsMetrics:     p.ObsMetrics,
		webhookMetrics: p.WebhookMetrics,
	}, nil
}

// IngestWebhook runs one delivery through registry, signature, extraction,
// gate and poster. Every call ends in exactly one outcome.
func (s *Service) IngestWebhook(ctx context.Context, entityCode string, payload []byte, headers http.Header) (paymentdomain.Result, error) {
	start := time.Now()
	entityCode = strings.ToLower(strings.TrimSpace(entityCode))

	result, err := s.ingest(ctx, entityCode, payload, headers)

	label := outcomeLabel(result, err)
	s.obsMetrics.RecordWebhookOutcome(ctx, entityCode, label)
	s.webhookMetrics.ObserveDelivery(entityCode, label, time.Since(start))
	return result, err
}

func (s *Service) ingest(ctx context.Context, entityCode string, payload []byte, headers http.Header) (paymentdomain.Result, error) {
	result := paymentdomain.Result{EntityCode: entityCode}

	if s.maxBodyBytes > 0 && int64(len(payload)) > s.maxBodyBytes {
		return result, paymentdomain.ErrPayloadTooLarge
	}

	binding, err := s.registry.Lookup(entityCode)
	if err != nil {
		return result, err
	}

	adapter, err := s.adapters.NewAdapter(s.provider, paymentdomain.AdapterConfig{
		EntityCode: binding.Code,
		Secret:     binding.Secret,
		Tolerance:  s.tolerance,
		Clock:      s.clock,
	})
	if err != nil {
		return result, fmt.Errorf("build %s adapter for %s: %w", s.provider, binding.Code, err)
	}

	log := logger.WithEntity(logger.WithContext(ctx, s.log), binding.Code, binding.TenantID)

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		log.Warn("webhook signature rejected",
			zap.Bool("signature_present", hasSignature(headers)),
			zap.Error(err),
		)
		return result, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			result.Outcome = paymentdomain.OutcomeIgnored
			return result, nil
		}
		log.Warn("webhook payload rejected", zap.Error(err))
		return result, err
	}
	result.EventID = event.EventID
	result.ProviderTransactionID = event.ProviderTransactionID

	log = log.With(
		zap.String("event_id", event.EventID),
		zap.String("provider_transaction_id", event.ProviderTransactionID),
	)

	auth, err := gate.Authorize(binding, event)
	switch {
	case errors.Is(err, paymentdomain.ErrEntityMismatch):
		log.Warn("webhook tenant claim does not match entity binding",
			zap.String("claimed_tenant_id", event.TenantClaim),
		)
		result.Outcome = paymentdomain.OutcomeRejected
		return result, err
	case errors.Is(err, paymentdomain.ErrEntityInactive):
		result.Outcome = paymentdomain.OutcomeRejected
		result.TenantID = auth.TenantID
		if recErr := s.poster.RecordRejection(ctx, auth, event); recErr != nil {
			s.webhookMetrics.IncPersistenceError(binding.Code, recErr)
			log.Error("failed to record webhook for inactive entity", zap.Error(recErr))
			return result, errors.Join(err, recErr)
		}
		log.Error("webhook received for inactive billing entity")
		return result, err
	case err != nil:
		return result, err
	}
	result.TenantID = auth.TenantID

	ctx = obscontext.WithEntity(ctx, auth.EntityCode)
	ctx = obscontext.WithTenantID(ctx, auth.TenantID)
	s.checkAttribution(ctx, log, auth)

	outcome, err := s.poster.Post(ctx, auth, event)
	if err != nil {
		s.webhookMetrics.IncPersistenceError(binding.Code, err)
		return result, err
	}
	result.Outcome = outcome
	return result, nil
}

// checkAttribution compares the attributed member's tenant with the binding.
// It only logs; the binding stays authoritative.
func (s *Service) checkAttribution(ctx context.Context, log *zap.Logger, auth paymentdomain.Authorization) {
	if s.directory == nil || auth.UserID == "" {
		return
	}
	member, err := s.directory.Lookup(ctx, auth.UserID)
	switch {
	case errors.Is(err, directorydomain.ErrMemberNotFound):
		log.Warn("attributed member not found in directory", zap.String("user_id", auth.UserID))
	case err != nil:
		log.Warn("member directory lookup failed", zap.String("user_id", auth.UserID), zap.Error(err))
	case member.TenantID != auth.TenantID:
		log.Warn("attributed member belongs to another tenant",
			zap.String("user_id", auth.UserID),
			zap.String("member_tenant_id", member.TenantID),
		)
	}
}

func hasSignature(headers http.Header) bool {
	for key := range headers {
		if strings.HasSuffix(strings.ToLower(key), "-signature") {
			return true
		}
	}
	return false
}

func outcomeLabel(result paymentdomain.Result, err error) string {
	switch {
	case err == nil:
		return string(result.Outcome)
	case errors.Is(err, billingentitydomain.ErrUnknownEntity):
		return "unknown_entity"
	case paymentdomain.IsSignatureError(err):
		return "unauthorized"
	case errors.Is(err, paymentdomain.ErrEntityMismatch):
		return "entity_mismatch"
	case errors.Is(err, paymentdomain.ErrEntityInactive):
		return "entity_inactive"
	case errors.Is(err, paymentdomain.ErrPayloadTooLarge):
		return "payload_too_large"
	case paymentdomain.IsPayloadError(err):
		return "invalid_payload"
	default:
		return "error"
	}
}
