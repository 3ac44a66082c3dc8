package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/memberledger/internal/audit/domain"
	auditrepo "github.com/smallbiznis/memberledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/memberledger/internal/audit/service"
	obscontext "github.com/smallbiznis/memberledger/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:audit_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))
	return db
}

func newService(t *testing.T, db *gorm.DB) auditdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})
}

func TestAuditLogPersistsTenantScopedEntry(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(t, db)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	tenantID := "tenant_ks"
	targetID := "txn_1"
	require.NoError(t, svc.AuditLog(ctx, &tenantID, "", nil, "webhook.posted", "provider_transaction", &targetID, map[string]any{
		"event_id": "evt_1",
		"":         "dropped",
	}))

	logs, err := svc.List(context.Background(), auditdomain.ListFilter{TenantID: "tenant_ks"})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "webhook.posted", entry.Action)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), entry.ActorType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "txn_1", *entry.TargetID)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Equal(t, "evt_1", entry.Metadata["event_id"])
	assert.NotContains(t, entry.Metadata, "")
}

func TestAuditLogFallsBackToContextTenant(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(t, db)

	ctx := obscontext.WithTenantID(context.Background(), "tenant_mk")
	require.NoError(t, svc.AuditLog(ctx, nil, "provider", nil, "webhook.rejected_inactive", "", nil, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListFilter{TenantID: "tenant_mk", Action: "webhook.rejected_inactive"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "unknown", logs[0].TargetType)
	assert.Equal(t, "provider", logs[0].ActorType)
}

func TestAuditLogValidation(t *testing.T) {
	svc := newService(t, setupTestDB(t))

	err := svc.AuditLog(context.Background(), nil, "", nil, "  ", "", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	_, err = svc.List(context.Background(), auditdomain.ListFilter{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTenant)
}
