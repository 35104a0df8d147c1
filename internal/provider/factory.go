package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"bizassist/internal/config"
	"bizassist/internal/domain"
)

// Constructor creates a generator from a provider config entry.
type Constructor func(pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Generator

// Factory creates and caches generators from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	client       *http.Client
	constructors map[string]Constructor
	cache        map[string]domain.Generator
	mu           sync.RWMutex
}

// NewFactory creates a generator factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		client:       SharedHTTPClient(0),
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Generator),
	}
	f.constructors["ollama"] = func(pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Generator {
		return NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Client: client, Logger: logger})
	}
	f.constructors["openai"] = func(pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Generator {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Client: client, Logger: logger})
	}
	return f
}

// RegisterConstructor adds (or replaces) a generator constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

// Get returns the named generator. Instances are cached.
func (f *Factory) Get(name string) (domain.Generator, error) {
	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	var g domain.Generator
	if ctor, found := f.constructors[name]; found {
		g = ctor(pc, f.client, f.logger.With("provider", name))
	} else if pc.APIBase != "" {
		// Unknown names are treated as OpenAI-compatible endpoints.
		g = NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Client: f.client, Logger: f.logger.With("provider", name)})
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no apiBase configured", name)
	}

	f.cache[name] = g
	return g, nil
}

// Generator returns the configured generation backend, wrapped in a failover
// chain when generation.failover lists more providers.
func (f *Factory) Generator() (domain.Generator, error) {
	primary, err := f.Get(f.cfg.Generation.Provider)
	if err != nil {
		return nil, err
	}
	if len(f.cfg.Generation.Failover) == 0 {
		return primary, nil
	}

	chain := []domain.Generator{primary}
	for _, name := range f.cfg.Generation.Failover {
		if name == f.cfg.Generation.Provider {
			continue
		}
		g, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping failover provider", "provider", name, "error", err)
			continue
		}
		chain = append(chain, g)
	}
	if len(chain) == 1 {
		return primary, nil
	}
	return NewFailoverGenerator(chain, f.logger), nil
}
