package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/memberledger/internal/payment/domain"
)

// DefaultProvider signs every billing entity's channel unless
// WEBHOOK_PROVIDER names another registered adapter.
const DefaultProvider = "paddle"

// Registry holds one adapter factory per provider. Adapters are built per
// delivery from the entity's own secret, so no adapter is shared between
// billing entities.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalizeProvider(factory.Provider())
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalizeProvider(provider)]
	return ok
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.factories))
	for provider := range r.factories {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}

// Resolve normalises the configured provider name, falling back to
// DefaultProvider, and fails when no factory is registered for it.
func (r *Registry) Resolve(provider string) (string, error) {
	provider = normalizeProvider(provider)
	if provider == "" {
		provider = DefaultProvider
	}
	if !r.ProviderExists(provider) {
		return "", fmt.Errorf("%w: %q (registered: %s)", domain.ErrProviderNotFound, provider, strings.Join(r.Providers(), ", "))
	}
	return provider, nil
}

// NewAdapter builds the adapter that verifies and parses deliveries for one
// billing entity.
func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	factory, ok := r.factories[normalizeProvider(provider)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	adapter, err := factory.NewAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", cfg.EntityCode, err)
	}
	return adapter, nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
