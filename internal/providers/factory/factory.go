package factory

import (
	"fmt"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/config"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers/anthropic"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers/gemini"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers/openai"
)

// CreateProvider constructs the adapter for one configured backend.
// Credentials resolve lazily through the layered source: explicit
// config key first, else the integration record named by the config
// (defaulting to the provider id).
func CreateProvider(id string, cfg config.ProviderConfig, source providers.IntegrationSource) (providers.Provider, error) {
	integration := cfg.Integration
	if integration == "" {
		integration = id
	}
	creds := providers.NewCredentials(cfg.APIKey, integration, source)

	switch cfg.Type {
	case "openai":
		return openai.NewProvider(id, cfg, creds), nil
	case "anthropic":
		return anthropic.NewProvider(id, cfg, creds), nil
	case "gemini":
		return gemini.NewProvider(id, cfg, creds), nil
	case "openai-compatible", "ollama":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base URL is required for provider type %s", cfg.Type)
		}
		return openai.NewProvider(id, cfg, creds), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// BuildRegistry constructs every configured provider into a registry.
func BuildRegistry(cfgs map[string]config.ProviderConfig, source providers.IntegrationSource) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	for id, cfg := range cfgs {
		p, err := CreateProvider(id, cfg, source)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		registry.Register(id, p)
	}
	return registry, nil
}
