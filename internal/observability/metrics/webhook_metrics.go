package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	WebhookReasonDeadlineExceeded     = "deadline_exceeded"
	WebhookReasonDBLockTimeout        = "db_lock_timeout"
	WebhookReasonSerializationFailure = "serialization_failure"
	WebhookReasonUniqueViolation      = "unique_violation"
	WebhookReasonConnection           = "connection"
	WebhookReasonUnknown              = "unknown"
)

// WebhookMetrics captures webhook pipeline health for scraping on /metrics.
type WebhookMetrics struct {
	deliveries        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	persistenceErrors *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

var (
	webhookMetricsOnce sync.Once
	webhookMetrics     *WebhookMetrics
)

// Webhook returns the process-wide webhook metrics registered on the default
// Prometheus registerer.
func Webhook(cfg Config) *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookMetrics = newWebhookMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return webhookMetrics
}

func newWebhookMetrics(registerer prometheus.Registerer, cfg Config) *WebhookMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "memberledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberledger_webhook_deliveries_total",
		Help:        "Webhook deliveries by billing entity and outcome.",
		ConstLabels: constLabels,
	}, []string{"entity", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "memberledger_webhook_duration_seconds",
		Help:        "Time from receipt to a definite webhook outcome.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"entity"})
	persistenceErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberledger_webhook_persistence_errors_total",
		Help:        "Webhook persistence failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"entity", "reason"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberledger_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "memberledger_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	registerer.MustRegister(
		deliveries,
		duration,
		persistenceErrors,
		httpRequests,
		httpDuration,
	)

	return &WebhookMetrics{
		deliveries:        deliveries,
		duration:          duration,
		persistenceErrors: persistenceErrors,
		httpRequests:      httpRequests,
		httpDuration:      httpDuration,
	}
}

// ObserveDelivery records a webhook outcome and its latency.
func (m *WebhookMetrics) ObserveDelivery(entity, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	entity = normalizeLabel(entity)
	m.deliveries.WithLabelValues(entity, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(entity).Observe(elapsed.Seconds())
}

// IncPersistenceError counts a storage failure by classified reason.
func (m *WebhookMetrics) IncPersistenceError(entity string, err error) {
	if m == nil || err == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(normalizeLabel(entity), ClassifyPersistenceReason(err)).Inc()
}

// ObserveHTTPRequest records a served HTTP request.
func (m *WebhookMetrics) ObserveHTTPRequest(method, route, statusCode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, statusCode).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ClassifyPersistenceReason maps storage errors to low-cardinality reasons.
func ClassifyPersistenceReason(err error) string {
	if err == nil {
		return WebhookReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WebhookReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return WebhookReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return WebhookReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return WebhookReasonUniqueViolation
	}
	if pgClass(err) == "08" {
		return WebhookReasonConnection
	}
	return WebhookReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func pgClass(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return pgErr.Code[:2]
	}
	return ""
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
