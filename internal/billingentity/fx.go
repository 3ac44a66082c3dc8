package billingentity

import (
	"errors"

	"github.com/smallbiznis/memberledger/internal/billingentity/domain"
	"github.com/smallbiznis/memberledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billing.entity",
	fx.Provide(ProvideRegistry),
)

// ProvideRegistry loads billing entities once at startup.
func ProvideRegistry(cfg config.Config, log *zap.Logger) (domain.Registry, error) {
	log = log.Named("billing.entity")

	entities, err := config.LoadBillingEntities(cfg.BillingEntitiesFile)
	if err != nil {
		if !errors.Is(err, config.ErrEntitiesFileNotFound) {
			return nil, err
		}
		log.Warn("billing entities file not found, webhook channels disabled")
	}

	bindings := make([]domain.Binding, 0, len(entities))
	for _, entity := range entities {
		bindings = append(bindings, domain.Binding{
			Code:     entity.Code,
			Secret:   entity.Secret,
			TenantID: entity.TenantID,
			Active:   entity.Active,
		})
	}

	registry, err := NewRegistry(bindings...)
	if err != nil {
		return nil, err
	}

	for _, code := range registry.Codes() {
		binding, _ := registry.Lookup(code)
		log.Info("billing entity registered",
			zap.String("entity", binding.Code),
			zap.String("tenant_id", binding.TenantID),
			zap.Bool("active", binding.Active),
		)
	}
	return registry, nil
}
