package gate

import (
	"strings"

	billingentitydomain "github.com/smallbiznis/memberledger/internal/billingentity/domain"
	paymentdomain "github.com/smallbiznis/memberledger/internal/payment/domain"
)

// Authorize decides which tenant an event is posted under. The entity
// binding is the only authority; the payload can contradict it but never
// redirect it.
//
// A tenant claim that differs from the bound tenant yields ErrEntityMismatch
// and an empty Authorization. A dark entity yields ErrEntityInactive together
// with the nominal Authorization so the rejection can still be recorded.
func Authorize(binding billingentitydomain.Binding, event *paymentdomain.TransactionEvent) (paymentdomain.Authorization, error) {
	if event == nil {
		return paymentdomain.Authorization{}, paymentdomain.ErrInvalidEvent
	}
	tenantID := strings.TrimSpace(binding.TenantID)
	if binding.Code == "" || tenantID == "" {
		return paymentdomain.Authorization{}, paymentdomain.ErrInvalidAuthorization
	}

	if claim := strings.TrimSpace(event.TenantClaim); claim != "" && claim != tenantID {
		return paymentdomain.Authorization{}, paymentdomain.ErrEntityMismatch
	}

	auth := paymentdomain.Authorization{
		EntityCode:         binding.Code,
		TenantID:           tenantID,
		ProcessingScopeKey: binding.ProcessingScopeKey(),
		UserID:             strings.TrimSpace(event.UserID),
	}

	if !binding.Active {
		return auth, paymentdomain.ErrEntityInactive
	}
	return auth, nil
}
