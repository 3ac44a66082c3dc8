package rls

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWithTenantSkipsNonPostgres(t *testing.T) {
	dsn := fmt.Sprintf("file:rls_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return WithTenant(tx, "tenant_ks")
	})
	assert.NoError(t, err)
}

func TestWithTenantIgnoresEmptyInput(t *testing.T) {
	assert.NoError(t, WithTenant(nil, "tenant_ks"))
	assert.NoError(t, WithTenant(&gorm.DB{}, " "))
}
