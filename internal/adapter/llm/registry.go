package llm

import (
	"fmt"
	"log/slog"
	"sync"

	"devagents/internal/domain"
	"devagents/internal/infra/config"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.LLMProvider)}
}

// Register adds a provider. Returns an error if the name is already taken.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// BuildRegistry constructs providers from configuration, wrapping each in
// a circuit breaker when enabled. The returned default provider is the
// configured one, or the only provider when exactly one is defined.
func BuildRegistry(cfg config.LLMConfig, logger *slog.Logger) (*Registry, domain.LLMProvider, error) {
	registry := NewRegistry()

	for _, pc := range cfg.Providers {
		var provider domain.LLMProvider
		switch pc.Type {
		case "anthropic":
			provider = NewAnthropicProvider(pc, logger)
		case "openai":
			provider = NewOpenAIProvider(pc, logger)
		default:
			return nil, nil, fmt.Errorf("unknown provider type %q", pc.Type)
		}

		if cfg.CircuitBreaker.Enabled {
			provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
		}

		if err := registry.Register(provider); err != nil {
			return nil, nil, err
		}
	}

	var fallback domain.LLMProvider
	switch {
	case cfg.DefaultProvider != "":
		p, err := registry.Get(cfg.DefaultProvider)
		if err != nil {
			return nil, nil, err
		}
		fallback = p
	case len(cfg.Providers) == 1:
		fallback, _ = registry.Get(cfg.Providers[0].Name)
	}

	return registry, fallback, nil
}
