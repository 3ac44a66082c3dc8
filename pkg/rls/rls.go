package rls

import (
	"strings"

	"gorm.io/gorm"
)

const tenantSetting = "app.current_tenant_id"

// WithTenant scopes the current postgres transaction to tenantID so row
// level security policies keyed on app.current_tenant_id apply. Other
// dialects have no equivalent and are left untouched.
func WithTenant(tx *gorm.DB, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tx == nil || tenantID == "" {
		return nil
	}
	if tx.Dialector == nil || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", tenantSetting, tenantID).Error
}
