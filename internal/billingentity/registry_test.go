package billingentity

import (
	"testing"

	"github.com/smallbiznis/memberledger/internal/billingentity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	registry, err := NewRegistry(
		domain.Binding{Code: "KS", Secret: "sec_ks", TenantID: "tenant_ks", Active: true},
		domain.Binding{Code: "al", Secret: "sec_al", TenantID: "tenant_al", Active: false},
	)
	require.NoError(t, err)

	binding, err := registry.Lookup(" ks ")
	require.NoError(t, err)
	assert.Equal(t, "ks", binding.Code)
	assert.Equal(t, "tenant_ks", binding.TenantID)
	assert.Equal(t, "entity:ks", binding.ProcessingScopeKey())

	dark, err := registry.Lookup("AL")
	require.NoError(t, err)
	assert.False(t, dark.Active)
	assert.Equal(t, "sec_al", dark.Secret)

	_, err = registry.Lookup("mk")
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
	_, err = registry.Lookup("")
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)

	assert.Equal(t, []string{"al", "ks"}, registry.Codes())
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryRejectsInvalidBindings(t *testing.T) {
	cases := map[string][]domain.Binding{
		"empty code":     {{Code: " ", TenantID: "tenant_ks", Secret: "sec_ks"}},
		"missing tenant": {{Code: "ks", Secret: "sec_ks"}},
		"missing secret": {{Code: "ks", TenantID: "tenant_ks"}},
		"duplicate code": {{Code: "ks", TenantID: "tenant_ks", Secret: "sec_ks"}, {Code: "KS", TenantID: "tenant_mk", Secret: "sec_mk"}},
		"shared secret":  {{Code: "ks", TenantID: "tenant_ks", Secret: "same"}, {Code: "mk", TenantID: "tenant_mk", Secret: "same"}},
	}
	for name, bindings := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(bindings...)
			assert.ErrorIs(t, err, domain.ErrInvalidEntity)
		})
	}
}

func TestRegistryCodesIsACopy(t *testing.T) {
	registry, err := NewRegistry(domain.Binding{Code: "ks", TenantID: "tenant_ks", Secret: "sec_ks"})
	require.NoError(t, err)

	codes := registry.Codes()
	codes[0] = "mutated"
	assert.Equal(t, []string{"ks"}, registry.Codes())
}
