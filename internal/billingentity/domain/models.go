package domain

import "errors"

// Binding ties a billing entity to its webhook signing secret and the one
// tenant it is allowed to post for. A dark entity (Active=false) may still
// carry a valid secret so its channel can be provisioned before launch.
type Binding struct {
	Code     string
	Secret   string
	TenantID string
	Active   bool
}

// ProcessingScopeKey groups webhook records by billing entity.
func (b Binding) ProcessingScopeKey() string {
	return "entity:" + b.Code
}

type Registry interface {
	Lookup(code string) (Binding, error)
	Codes() []string
	Len() int
}

var (
	ErrUnknownEntity = errors.New("unknown_billing_entity")
	ErrInvalidEntity = errors.New("invalid_billing_entity")
)
