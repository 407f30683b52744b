package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pagedeck/pagedeck/internal/metrics"
)

// Config holds pagedeck configuration.
// Stored at: ~/.pagedeck/config.yaml (or ./config.yaml)
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Cache        CacheCfg                  `mapstructure:"cache" yaml:"cache"`
	Retry        RetryCfg                  `mapstructure:"retry" yaml:"retry"`
	Pricing      []PriceCfg                `mapstructure:"pricing" yaml:"pricing"`
	Prompts      PromptsCfg                `mapstructure:"prompts" yaml:"prompts"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`                       // "gemini", "openrouter", "openai", "anthropic", "mock"
	Model          string `mapstructure:"model" yaml:"model"`                     // Model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`               // Optional endpoint override
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per minute
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selection and run limits.
type DefaultsCfg struct {
	LLMProvider     string   `mapstructure:"llm_provider" yaml:"llm_provider"`
	Model           string   `mapstructure:"model" yaml:"model"` // Overrides the provider model when set
	Temperature     *float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxWorkers      int      `mapstructure:"max_workers" yaml:"max_workers"`           // Concurrent group extractions
	HintConcurrency int      `mapstructure:"hint_concurrency" yaml:"hint_concurrency"` // Concurrent hint classifications
	Language        string   `mapstructure:"language" yaml:"language"`                 // Deck translation target
}

// CacheCfg sizes the process-wide response cache.
type CacheCfg struct {
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
	TTL        string `mapstructure:"ttl" yaml:"ttl"`
}

// RetryCfg bounds generation retries.
type RetryCfg struct {
	MaxRetries   int    `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay string `mapstructure:"initial_delay" yaml:"initial_delay"`
	Timeout      string `mapstructure:"timeout" yaml:"timeout"` // Per attempt
}

// PriceCfg is the USD cost per one million tokens for a model.
type PriceCfg struct {
	Model       string  `mapstructure:"model" yaml:"model"`
	Input       float64 `mapstructure:"input" yaml:"input"`
	Output      float64 `mapstructure:"output" yaml:"output"`
	CachedInput float64 `mapstructure:"cached_input" yaml:"cached_input"`
}

// PromptsCfg locates prompt template overrides.
type PromptsCfg struct {
	OverrideDir string `mapstructure:"override_dir" yaml:"override_dir"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	v := newViper()
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	p, ok := c.LLMProviders[name]
	return p, ok
}

// EnabledLLMProviders returns only enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, p := range c.LLMProviders {
		if p.Enabled {
			result[name] = p
		}
	}
	return result
}

// PricingTable converts the pricing list into a lookup table.
func (c *Config) PricingTable() metrics.Pricing {
	table := make(metrics.Pricing, len(c.Pricing))
	for _, p := range c.Pricing {
		table[p.Model] = metrics.ModelPrice{
			InputPerMillion:       p.Input,
			OutputPerMillion:      p.Output,
			CachedInputPerMillion: p.CachedInput,
		}
	}
	return table
}

// TTLDuration parses TTL. An empty value returns zero.
func (c CacheCfg) TTLDuration() (time.Duration, error) {
	return parseDuration("cache.ttl", c.TTL)
}

// InitialDelayDuration parses InitialDelay. An empty value returns zero.
func (c RetryCfg) InitialDelayDuration() (time.Duration, error) {
	return parseDuration("retry.initial_delay", c.InitialDelay)
}

// TimeoutDuration parses Timeout. An empty value returns zero.
func (c RetryCfg) TimeoutDuration() (time.Duration, error) {
	return parseDuration("retry.timeout", c.Timeout)
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Defaults.LLMProvider == "" {
		errs = append(errs, errors.New("defaults.llm_provider is required"))
	} else if _, ok := c.LLMProviders[c.Defaults.LLMProvider]; !ok {
		errs = append(errs, fmt.Errorf("defaults.llm_provider %q is not configured under llm_providers", c.Defaults.LLMProvider))
	}
	if c.Defaults.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("defaults.max_workers must not be negative, got %d", c.Defaults.MaxWorkers))
	}
	if c.Defaults.HintConcurrency < 0 {
		errs = append(errs, fmt.Errorf("defaults.hint_concurrency must not be negative, got %d", c.Defaults.HintConcurrency))
	}
	if t := c.Defaults.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("defaults.temperature must be between 0 and 2, got %g", *t))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries))
	}

	for name, p := range c.LLMProviders {
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("llm_providers.%s.type is required", name))
		}
		if p.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("llm_providers.%s.rate_limit must not be negative", name))
		}
		if p.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("llm_providers.%s.timeout_seconds must not be negative", name))
		}
	}

	for i, p := range c.Pricing {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("pricing[%d].model is required", i))
		}
	}

	if _, err := c.Cache.TTLDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Retry.InitialDelayDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Retry.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, value)
	}
	return d, nil
}
