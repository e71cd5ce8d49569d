package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/adalundhe/parley/core/config"
)

var ErrNoProvider = errors.New("no provider configured")

// Registry manages provider instances and the default selection.
type Registry struct {
	mu sync.RWMutex

	providers map[ProviderType]Provider
	default_  ProviderType
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderType]Provider),
	}
}

// Register adds a provider. The first one registered becomes the default.
func (r *Registry) Register(providerType ProviderType, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[providerType] = provider
	if len(r.providers) == 1 {
		r.default_ = providerType
	}
}

func (r *Registry) Get(providerType ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", providerType)
	}
	return provider, nil
}

func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.default_ == "" {
		return nil, ErrNoProvider
	}
	return r.providers[r.default_], nil
}

func (r *Registry) SetDefault(providerType ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[providerType]; !ok {
		return fmt.Errorf("provider not registered: %s", providerType)
	}
	r.default_ = providerType
	return nil
}

// Available returns registered provider types in name order.
func (r *Registry) Available() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// FromConfig registers every provider that has an API key. An empty
// registry is valid and means personas answer from templates.
func FromConfig(cfg config.ProvidersConfig) (*Registry, error) {
	r := NewRegistry()

	if cfg.Anthropic.APIKey != "" {
		p, err := NewAnthropicProvider(AnthropicConfig{BaseConfig: baseFrom(cfg.Anthropic)})
		if err != nil {
			return nil, err
		}
		r.Register(ProviderTypeAnthropic, p)
	}
	if cfg.OpenAI.APIKey != "" {
		p, err := NewOpenAIProvider(OpenAIConfig{BaseConfig: baseFrom(cfg.OpenAI)})
		if err != nil {
			return nil, err
		}
		r.Register(ProviderTypeOpenAI, p)
	}

	if cfg.Default != "" {
		if err := r.SetDefault(ProviderType(cfg.Default)); err != nil {
			return nil, fmt.Errorf("providers.default: %w", err)
		}
	}
	return r, nil
}

func baseFrom(pc config.ProviderConfig) BaseConfig {
	base := DefaultBaseConfig()
	base.APIKey = pc.APIKey
	base.Model = pc.Model
	base.BaseURL = pc.BaseURL
	if pc.MaxTokens > 0 {
		base.MaxTokens = pc.MaxTokens
	}
	return base
}
