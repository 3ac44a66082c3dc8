package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EntityConfig is one billing entity as declared in entities.yml.
type EntityConfig struct {
	Code      string `mapstructure:"code"`
	TenantID  string `mapstructure:"tenant_id"`
	Active    bool   `mapstructure:"active"`
	Secret    string `mapstructure:"secret"`
	SecretEnv string `mapstructure:"secret_env"`
}

var ErrEntitiesFileNotFound = errors.New("billing_entities_file_not_found")

// LoadBillingEntities reads the billing entity declarations. When path is
// empty the default search locations are used. Secrets are resolved from
// secret_env or MEMBERLEDGER_ENTITY_<CODE>_SECRET when not inlined.
func LoadBillingEntities(path string) ([]EntityConfig, error) {
	v := viper.New()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("entities")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/memberledger")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrEntitiesFileNotFound
		}
		return nil, fmt.Errorf("read billing entities: %w", err)
	}

	var entities []EntityConfig
	if err := v.UnmarshalKey("billing_entities", &entities); err != nil {
		return nil, fmt.Errorf("decode billing entities: %w", err)
	}

	for i := range entities {
		entities[i].Code = strings.ToLower(strings.TrimSpace(entities[i].Code))
		entities[i].TenantID = strings.TrimSpace(entities[i].TenantID)
		entities[i].Secret = resolveEntitySecret(entities[i])
	}

	if err := validateBillingEntities(entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func resolveEntitySecret(entity EntityConfig) string {
	override := "MEMBERLEDGER_ENTITY_" + strings.ToUpper(entity.Code) + "_SECRET"
	if v := strings.TrimSpace(os.Getenv(override)); v != "" {
		return v
	}
	if name := strings.TrimSpace(entity.SecretEnv); name != "" {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(entity.Secret)
}

func validateBillingEntities(entities []EntityConfig) error {
	seen := make(map[string]struct{}, len(entities))
	secrets := make(map[string]string, len(entities))
	for _, entity := range entities {
		if entity.Code == "" {
			return errors.New("billing_entities: code cannot be empty")
		}
		if _, ok := seen[entity.Code]; ok {
			return fmt.Errorf("billing_entities: duplicate code %q", entity.Code)
		}
		seen[entity.Code] = struct{}{}
		if entity.TenantID == "" {
			return fmt.Errorf("billing_entities: entity %q has no tenant_id", entity.Code)
		}
		if entity.Secret == "" {
			return fmt.Errorf("billing_entities: entity %q has no signing secret", entity.Code)
		}
		if other, ok := secrets[entity.Secret]; ok {
			return fmt.Errorf("billing_entities: entity %q reuses the signing secret of %q", entity.Code, other)
		}
		secrets[entity.Secret] = entity.Code
	}
	return nil
}
