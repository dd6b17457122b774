package llm

import (
	"convoserve/internal/apperr"
	"convoserve/internal/config"
)

// Registry maps provider names to adapter instances. Adding a vendor means
// adding one adapter and one registry entry; the orchestrator never changes.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds the closed set of adapters from provider credentials.
func NewRegistry(cfg config.LLMConfig) *Registry {
	return &Registry{
		providers: map[string]Provider{
			"openai":    NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.ProviderRPS),
			"anthropic": NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.ProviderRPS),
			"gemini":    NewGeminiProvider(cfg.GeminiAPIKey, cfg.ProviderRPS),
			"local":     NewLocalProvider(),
		},
	}
}

// NewRegistryWith builds a registry from explicit adapters. Used by tests
// to substitute stubs.
func NewRegistryWith(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

// ForModel resolves the adapter serving a model descriptor.
func (r *Registry) ForModel(model config.Model) (Provider, error) {
	p, ok := r.providers[model.Provider]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "no provider registered for %q (model %s)", model.Provider, model.ID)
	}
	return p, nil
}
