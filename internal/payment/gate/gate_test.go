package gate

import (
	"testing"

	billingentitydomain "github.com/smallbiznis/memberledger/internal/billingentity/domain"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ks = billingentitydomain.Binding{Code: "ks", Secret: "sec_ks", TenantID: "tenant_ks", Active: true}
	al = billingentitydomain.Binding{Code: "al", Secret: "sec_al", TenantID: "tenant_al", Active: false}
)

func TestAuthorizeBindsEntityTenant(t *testing.T) {
	auth, err := Authorize(ks, &paymentdomain.TransactionEvent{UserID: "user_ks_1"})
	require.NoError(t, err)

	assert.Equal(t, "ks", auth.EntityCode)
	assert.Equal(t, "tenant_ks", auth.TenantID)
	assert.Equal(t, "entity:ks", auth.ProcessingScopeKey)
	assert.Equal(t, "user_ks_1", auth.UserID)
}

func TestAuthorizeAcceptsMatchingTenantClaim(t *testing.T) {
	auth, err := Authorize(ks, &paymentdomain.TransactionEvent{TenantClaim: "tenant_ks"})
	require.NoError(t, err)
	assert.Equal(t, "tenant_ks", auth.TenantID)
}

func TestAuthorizeRejectsForeignTenantClaim(t *testing.T) {
	auth, err := Authorize(ks, &paymentdomain.TransactionEvent{TenantClaim: "tenant_mk", UserID: "user_ks_1"})
	assert.ErrorIs(t, err, paymentdomain.ErrEntityMismatch)
	assert.Equal(t, paymentdomain.Authorization{}, auth)
}

func TestAuthorizeDarkEntityFailsClosed(t *testing.T) {
	auth, err := Authorize(al, &paymentdomain.TransactionEvent{UserID: "user_al_1"})
	assert.ErrorIs(t, err, paymentdomain.ErrEntityInactive)
	assert.Equal(t, "tenant_al", auth.TenantID)
	assert.Equal(t, "entity:al", auth.ProcessingScopeKey)
}

func TestAuthorizeMismatchWinsOverDark(t *testing.T) {
	_, err := Authorize(al, &paymentdomain.TransactionEvent{TenantClaim: "tenant_ks"})
	assert.ErrorIs(t, err, paymentdomain.ErrEntityMismatch)
	assert.NotErrorIs(t, err, paymentdomain.ErrEntityInactive)
}

func TestAuthorizeRejectsIncompleteInput(t *testing.T) {
	_, err := Authorize(ks, nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = Authorize(billingentitydomain.Binding{Code: "xx", Active: true}, &paymentdomain.TransactionEvent{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAuthorization)
}
