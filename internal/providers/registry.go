package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured LLM clients and their rate limiters.
// It supports config-driven instantiation and hot-reload, with thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	// retired holds replaced or removed entries still leased out.
	retired map[*registryEntry]struct{}
	logger  *slog.Logger
}

type registryEntry struct {
	client  LLMClient
	limiter *RateLimiter
	cfg     LLMProviderConfig

	// leases counts outstanding Acquire calls. A retired entry is closed
	// when its last lease is released.
	leases int
	closed bool
}

// Lease is a client checked out of the registry. The client stays open until
// Release is called, even if a reload replaces or removes it meanwhile.
type Lease struct {
	Client  LLMClient
	Limiter *RateLimiter

	once    sync.Once
	release func()
}

// Release returns the lease. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.release)
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		retired: make(map[*registryEntry]struct{}),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name with no rate limit.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replace(name, &registryEntry{client: client})
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return e.client, nil
}

// Acquire leases the named client and its rate limiter.
func (r *Registry) Acquire(name string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	e.leases++
	return &Lease{
		Client:  e.client,
		Limiter: e.limiter,
		release: func() { r.release(name, e) },
	}, nil
}

func (r *Registry) release(name string, e *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.leases--
	if _, ok := r.retired[e]; ok && e.leases == 0 {
		delete(r.retired, e)
		if err := closeEntry(e); err != nil && r.logger != nil {
			r.logger.Warn("failed to close retired LLM client", "name", name, "error", err)
		}
	}
}

// Limiter returns the rate limiter for a provider, or nil if unlimited.
func (r *Registry) Limiter(name string) *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.limiter
	}
	return nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Close releases every client that holds a connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, e := range r.entries {
		if err := closeEntry(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for e := range r.retired {
		if err := closeEntry(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.entries = make(map[string]*registryEntry)
	r.retired = make(map[*registryEntry]struct{})
	return firstErr
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// LLMProviders maps provider names to their config
	LLMProviders map[string]LLMProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type      string        // "gemini", "openrouter", "openai", "anthropic", "mock"
	Model     string        // Default model name
	APIKey    string        // Resolved API key
	BaseURL   string        // Optional endpoint override
	RateLimit int           // Requests per minute (0 = unlimited)
	Timeout   time.Duration // HTTP timeout; zero uses the client default
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with usable credentials are registered; providers
// that fail to build are logged and skipped.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered and closed.
// Providers with changed settings are re-created.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || (provCfg.APIKey == "" && provCfg.Type != MockClientName) {
			continue
		}
		want[name] = true

		existing, hasExisting := r.entries[name]
		if hasExisting && existing.cfg == provCfg {
			continue
		}

		client, err := createLLMClient(provCfg)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping LLM provider", "name", name, "type", provCfg.Type, "error", err)
			}
			delete(want, name)
			continue
		}
		r.replace(name, &registryEntry{
			client:  client,
			limiter: NewRateLimiter(provCfg.RateLimit),
			cfg:     provCfg,
		})
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.entries {
		if !want[name] {
			r.remove(name)
		}
	}
}

// replace must be called with lock held.
func (r *Registry) replace(name string, e *registryEntry) {
	if old, ok := r.entries[name]; ok {
		r.retire(old)
	}
	r.entries[name] = e
}

// remove must be called with lock held.
func (r *Registry) remove(name string) {
	old, ok := r.entries[name]
	if !ok {
		return
	}
	r.retire(old)
	delete(r.entries, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// retire closes e now, or after its last lease is released.
// Must be called with lock held.
func (r *Registry) retire(e *registryEntry) {
	if e.leases > 0 {
		r.retired[e] = struct{}{}
		return
	}
	_ = closeEntry(e)
}

func closeEntry(e *registryEntry) error {
	if e.closed {
		return nil
	}
	e.closed = true
	if c, ok := e.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) (LLMClient, error) {
	switch cfg.Type {
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}), nil
	case GeminiName:
		return NewGeminiClient(context.Background(), GeminiConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
		})
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}), nil
	case AnthropicName:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}), nil
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Type)
	}
}
