package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntitiesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadBillingEntitiesResolvesSecrets(t *testing.T) {
	t.Setenv("KS_WEBHOOK_SECRET", "from_env_ref")
	t.Setenv("MEMBERLEDGER_ENTITY_MK_SECRET", "from_override")

	path := writeEntitiesFile(t, `
billing_entities:
  - code: KS
    tenant_id: tenant_ks
    active: true
    secret_env: KS_WEBHOOK_SECRET
  - code: mk
    tenant_id: tenant_mk
    active: true
    secret: inline_ignored
  - code: al
    tenant_id: tenant_al
    active: false
    secret: inline_al
`)

	entities, err := LoadBillingEntities(path)
	require.NoError(t, err)
	require.Len(t, entities, 3)

	assert.Equal(t, "ks", entities[0].Code)
	assert.Equal(t, "from_env_ref", entities[0].Secret)
	assert.True(t, entities[0].Active)

	assert.Equal(t, "from_override", entities[1].Secret)

	assert.Equal(t, "inline_al", entities[2].Secret)
	assert.False(t, entities[2].Active)
}

func TestLoadBillingEntitiesRejectsDuplicateCodes(t *testing.T) {
	path := writeEntitiesFile(t, `
billing_entities:
  - code: ks
    tenant_id: tenant_ks
  - code: KS
    tenant_id: tenant_other
`)

	_, err := LoadBillingEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate code")
}

func TestLoadBillingEntitiesRequiresTenant(t *testing.T) {
	path := writeEntitiesFile(t, `
billing_entities:
  - code: ks
`)

	_, err := LoadBillingEntities(path)
	require.Error(t, err)
}

func TestLoadBillingEntitiesMissingFile(t *testing.T) {
	_, err := LoadBillingEntities(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, ErrEntitiesFileNotFound)
}

func TestLoadBillingEntitiesRequiresSecret(t *testing.T) {
	path := writeEntitiesFile(t, `
billing_entities:
  - code: ks
    tenant_id: tenant_ks
`)

	_, err := LoadBillingEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no signing secret")
}

func TestLoadBillingEntitiesRejectsSharedSecret(t *testing.T) {
	path := writeEntitiesFile(t, `
billing_entities:
  - code: ks
    tenant_id: tenant_ks
    secret: shared
  - code: mk
    tenant_id: tenant_mk
    secret: shared
`)

	_, err := LoadBillingEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reuses the signing secret")
}
