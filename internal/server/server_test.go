package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/memberledger/internal/billingentity"
	billingentitydomain "github.com/smallbiznis/memberledger/internal/billingentity/domain"
	"github.com/smallbiznis/memberledger/internal/clock"
	"github.com/smallbiznis/memberledger/internal/config"
	"github.com/smallbiznis/memberledger/internal/migration"
	"github.com/smallbiznis/memberledger/internal/observability"
	"github.com/smallbiznis/memberledger/internal/payment/adapters"
	"github.com/smallbiznis/memberledger/internal/payment/adapters/paddle"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/memberledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/memberledger/internal/payment/service"
	"github.com/smallbiznis/memberledger/internal/payment/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T, maxBodyBytes int64) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	registry, err := billingentity.NewRegistry(
		billingentitydomain.Binding{Code: "ks", Secret: "sec_ks", TenantID: "tenant_ks", Active: true},
		billingentitydomain.Binding{Code: "mk", Secret: "sec_mk", TenantID: "tenant_mk", Active: true},
		billingentitydomain.Binding{Code: "al", Secret: "sec_al", TenantID: "tenant_al", Active: false},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(13)
	require.NoError(t, err)
	clk := clock.NewFakeClock(testNow)

	cfg := config.Config{Webhook: config.WebhookConfig{
		SignatureTolerance: 5 * time.Minute,
		MaxBodyBytes:       maxBodyBytes,
		Provider:           paddle.ProviderName,
	}}

	poster := paymentservice.NewService(paymentservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  paymentrepo.Provide(),
		Clock: clk,
	})
	svc, err := webhook.NewService(webhook.Params{
		Log:      zap.NewNop(),
		Registry: registry,
		Adapters: adapters.NewRegistry(paddle.NewFactory()),
		Cfg:      cfg,
		Clock:    clk,
		Poster:   poster,
	})
	require.NoError(t, err)

	engine := NewEngine(observability.Config{}, nil)
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		PaymentSvc: svc,
	})
	return &testServer{engine: engine, db: db}
}

func payload(t *testing.T, eventID, txnID string, customData map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event_id":    eventID,
		"event_type":  paymentdomain.EventTypeTransactionCompleted,
		"occurred_at": testNow.Format(time.RFC3339),
		"data": map[string]any{
			"id":          txnID,
			"status":      "completed",
			"custom_data": customData,
			"details": map[string]any{
				"totals": map[string]string{"total": "1500", "currencyCode": "EUR"},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func (s *testServer) post(t *testing.T, entity, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments/"+entity, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(paddle.SignatureHeader, paddle.SignatureHeaderValue(secret, body, testNow.Unix()))
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) counts(t *testing.T) (invoices, ledger, events int64) {
	t.Helper()
	require.NoError(t, s.db.Model(&paymentdomain.BillingInvoice{}).Count(&invoices).Error)
	require.NoError(t, s.db.Model(&paymentdomain.BillingLedgerEntry{}).Count(&ledger).Error)
	require.NoError(t, s.db.Model(&paymentdomain.WebhookEvent{}).Count(&events).Error)
	return invoices, ledger, events
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhookPostsMemberPayment(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.post(t, "ks", "sec_ks", payload(t, "evt_1", "txn_1", map[string]string{"userId": "user_ks_1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, rec))

	var invoice paymentdomain.BillingInvoice
	require.NoError(t, s.db.Take(&invoice).Error)
	assert.Equal(t, "tenant_ks", invoice.TenantID)
	assert.Equal(t, "ks", invoice.BillingEntity)

	invoices, ledger, events := s.counts(t)
	assert.EqualValues(t, 1, invoices)
	assert.EqualValues(t, 1, ledger)
	assert.EqualValues(t, 1, events)
}

func TestWebhookReplayReportsDuplicate(t *testing.T) {
	s := newTestServer(t, 1<<20)

	require.Equal(t, http.StatusOK, s.post(t, "ks", "sec_ks", payload(t, "evt_1", "txn_1", map[string]string{"userId": "user_ks_1"})).Code)

	rec := s.post(t, "ks", "sec_ks", payload(t, "evt_2", "txn_1", map[string]string{"userId": "user_ks_1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "duplicate": true}, decode(t, rec))

	invoices, ledger, _ := s.counts(t)
	assert.EqualValues(t, 1, invoices)
	assert.EqualValues(t, 1, ledger)

	var event paymentdomain.WebhookEvent
	require.NoError(t, s.db.Where("provider_transaction_id = ?", "txn_1").Take(&event).Error)
	assert.Equal(t, "evt_1", event.EventID)
}

func TestWebhookDarkEntityFailsClosed(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.post(t, "al", "sec_al", payload(t, "evt_1", "txn_al", map[string]string{"userId": "user_al_1"}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Internal Server Error"}, decode(t, rec))

	invoices, ledger, events := s.counts(t)
	assert.EqualValues(t, 0, invoices)
	assert.EqualValues(t, 0, ledger)
	assert.EqualValues(t, 1, events)

	var event paymentdomain.WebhookEvent
	require.NoError(t, s.db.Take(&event).Error)
	assert.Equal(t, paymentdomain.ProcessingResultError, event.ProcessingResult)
	assert.Equal(t, "entity:al", event.ProcessingScopeKey)
}

func TestWebhookEntityMismatch(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.post(t, "ks", "sec_ks", payload(t, "evt_1", "txn_1", map[string]string{"tenantId": "tenant_mk"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Webhook entity mismatch"}, decode(t, rec))

	invoices, ledger, events := s.counts(t)
	assert.EqualValues(t, 0, invoices)
	assert.EqualValues(t, 0, ledger)
	assert.EqualValues(t, 0, events)
}

func TestWebhookRejectionStatuses(t *testing.T) {
	s := newTestServer(t, 1<<20)
	valid := payload(t, "evt_1", "txn_1", map[string]string{"userId": "user_ks_1"})

	cases := []struct {
		name   string
		entity string
		secret string
		body   []byte
		status int
		error  string
	}{
		{name: "missing signature", entity: "ks", body: valid, status: http.StatusUnauthorized, error: "Unauthorized"},
		{name: "foreign secret", entity: "ks", secret: "sec_mk", body: valid, status: http.StatusUnauthorized, error: "Unauthorized"},
		{name: "unknown entity", entity: "zz", secret: "sec_ks", body: valid, status: http.StatusNotFound, error: "Unknown billing entity"},
		{name: "malformed json", entity: "ks", secret: "sec_ks", body: []byte(`{"event_id":`), status: http.StatusBadRequest, error: "Invalid webhook payload"},
		{name: "missing attribution", entity: "ks", secret: "sec_ks", body: payload(t, "evt_1", "txn_1", nil), status: http.StatusBadRequest, error: "Invalid webhook payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.post(t, tc.entity, tc.secret, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, map[string]any{"error": tc.error}, decode(t, rec))
		})
	}

	invoices, ledger, events := s.counts(t)
	assert.EqualValues(t, 0, invoices+ledger+events)
}

func TestWebhookIgnoredEventType(t *testing.T) {
	s := newTestServer(t, 1<<20)
	body := []byte(`{"event_id":"evt_9","event_type":"subscription.updated","data":{"id":"sub_1"}}`)

	rec := s.post(t, "ks", "sec_ks", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "ignored": true}, decode(t, rec))
}

func TestWebhookBodyLimit(t *testing.T) {
	s := newTestServer(t, 64)
	body := []byte(`{"event_id":"evt_1","padding":"` + strings.Repeat("x", 128) + `"}`)

	rec := s.post(t, "ks", "sec_ks", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMapErrorDefaultsToInternal(t *testing.T) {
	status, message := mapError(fmt.Errorf("post provider transaction: %w", assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", message)

	errorType, code := classifyErrorForLog(fmt.Errorf("wrap: %w", paymentdomain.ErrEntityMismatch))
	assert.Equal(t, "unauthorized", errorType)
	assert.Equal(t, "webhook_entity_mismatch", code)
}
