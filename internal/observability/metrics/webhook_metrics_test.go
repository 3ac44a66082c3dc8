package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyPersistenceReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: WebhookReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: WebhookReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: WebhookReasonSerializationFailure},
		{name: "unique_violation_gorm", err: gorm.ErrDuplicatedKey, want: WebhookReasonUniqueViolation},
		{name: "unique_violation_pg", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: WebhookReasonUniqueViolation},
		{name: "connection", err: &pgconn.PgError{Code: "08006"}, want: WebhookReasonConnection},
		{name: "unknown", err: errors.New("boom"), want: WebhookReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyPersistenceReason(tc.err))
		})
	}
}

func TestObserveDelivery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newWebhookMetrics(registry, Config{ServiceName: "memberledger", Environment: "test"})

	m.ObserveDelivery("ks", "posted", 20*time.Millisecond)
	m.ObserveDelivery("ks", "posted", 30*time.Millisecond)
	m.ObserveDelivery("", "rejected", time.Millisecond)
	m.IncPersistenceError("ks", &pgconn.PgError{Code: "40001"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.deliveries.WithLabelValues("ks", "posted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues("unknown", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.persistenceErrors.WithLabelValues("ks", WebhookReasonSerializationFailure)))
}
