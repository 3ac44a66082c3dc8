package billingentity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/memberledger/internal/billingentity/domain"
)

type registry struct {
	bindings map[string]domain.Binding
	codes    []string
}

// NewRegistry builds an immutable registry. Codes are matched
// case-insensitively and must be unique. Every entity needs a tenant and a
// signing secret of its own.
func NewRegistry(bindings ...domain.Binding) (domain.Registry, error) {
	r := &registry{bindings: make(map[string]domain.Binding, len(bindings))}
	secrets := make(map[string]string, len(bindings))
	for _, binding := range bindings {
		binding.Code = normalizeCode(binding.Code)
		binding.TenantID = strings.TrimSpace(binding.TenantID)
		if binding.Code == "" {
			return nil, fmt.Errorf("%w: empty code", domain.ErrInvalidEntity)
		}
		if binding.TenantID == "" {
			return nil, fmt.Errorf("%w: %s has no tenant", domain.ErrInvalidEntity, binding.Code)
		}
		if _, exists := r.bindings[binding.Code]; exists {
			return nil, fmt.Errorf("%w: duplicate code %s", domain.ErrInvalidEntity, binding.Code)
		}
		if binding.Secret == "" {
			return nil, fmt.Errorf("%w: %s has no signing secret", domain.ErrInvalidEntity, binding.Code)
		}
		if other, taken := secrets[binding.Secret]; taken {
			return nil, fmt.Errorf("%w: %s reuses the signing secret of %s", domain.ErrInvalidEntity, binding.Code, other)
		}
		secrets[binding.Secret] = binding.Code
		r.bindings[binding.Code] = binding
		r.codes = append(r.codes, binding.Code)
	}
	sort.Strings(r.codes)
	return r, nil
}

func (r *registry) Lookup(code string) (domain.Binding, error) {
	code = normalizeCode(code)
	if code == "" {
		return domain.Binding{}, domain.ErrUnknownEntity
	}
	binding, ok := r.bindings[code]
	if !ok {
		return domain.Binding{}, domain.ErrUnknownEntity
	}
	return binding, nil
}

func (r *registry) Codes() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

func (r *registry) Len() int {
	return len(r.bindings)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
