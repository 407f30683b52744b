package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one documented configuration key and its default value.
type Entry struct {
	Key         string
	Value       any
	Description string
}

// DefaultEntries returns the default configuration entries.
// These are applied as viper defaults and listed by `pagedeck config keys`.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================

		// Gemini (native PDF input)
		{
			Key:         "llm_providers.gemini.type",
			Value:       "gemini",
			Description: "LLM provider type for Google Gemini",
		},
		{
			Key:         "llm_providers.gemini.model",
			Value:       "gemini-2.5-flash",
			Description: "Gemini model",
		},
		{
			Key:         "llm_providers.gemini.api_key",
			Value:       "${GEMINI_API_KEY}",
			Description: "Gemini API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.gemini.rate_limit",
			Value:       60,
			Description: "Gemini requests per minute",
		},
		{
			Key:         "llm_providers.gemini.enabled",
			Value:       true,
			Description: "Enable the Gemini provider",
		},

		// OpenRouter
		{
			Key:         "llm_providers.openrouter.type",
			Value:       "openrouter",
			Description: "LLM provider type for OpenRouter",
		},
		{
			Key:         "llm_providers.openrouter.model",
			Value:       "google/gemini-2.5-flash",
			Description: "OpenRouter model",
		},
		{
			Key:         "llm_providers.openrouter.api_key",
			Value:       "${OPENROUTER_API_KEY}",
			Description: "OpenRouter API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.openrouter.rate_limit",
			Value:       60,
			Description: "OpenRouter requests per minute",
		},
		{
			Key:         "llm_providers.openrouter.timeout_seconds",
			Value:       300,
			Description: "OpenRouter HTTP timeout in seconds",
		},
		{
			Key:         "llm_providers.openrouter.enabled",
			Value:       true,
			Description: "Enable the OpenRouter provider",
		},

		// OpenAI
		{
			Key:         "llm_providers.openai.type",
			Value:       "openai",
			Description: "LLM provider type for OpenAI",
		},
		{
			Key:         "llm_providers.openai.model",
			Value:       "gpt-4.1-mini",
			Description: "OpenAI model",
		},
		{
			Key:         "llm_providers.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.openai.rate_limit",
			Value:       60,
			Description: "OpenAI requests per minute",
		},
		{
			Key:         "llm_providers.openai.enabled",
			Value:       true,
			Description: "Enable the OpenAI provider",
		},

		// Anthropic
		{
			Key:         "llm_providers.anthropic.type",
			Value:       "anthropic",
			Description: "LLM provider type for Anthropic",
		},
		{
			Key:         "llm_providers.anthropic.model",
			Value:       "claude-sonnet-4-5",
			Description: "Anthropic model",
		},
		{
			Key:         "llm_providers.anthropic.api_key",
			Value:       "${ANTHROPIC_API_KEY}",
			Description: "Anthropic API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.anthropic.rate_limit",
			Value:       50,
			Description: "Anthropic requests per minute",
		},
		{
			Key:         "llm_providers.anthropic.enabled",
			Value:       true,
			Description: "Enable the Anthropic provider",
		},

		// Mock (offline runs)
		{
			Key:         "llm_providers.mock.type",
			Value:       "mock",
			Description: "Offline provider that returns empty structured responses",
		},
		{
			Key:         "llm_providers.mock.enabled",
			Value:       false,
			Description: "Enable the mock provider",
		},

		// ===================
		// Defaults
		// ===================
		{
			Key:         "defaults.llm_provider",
			Value:       "gemini",
			Description: "Provider used for every pipeline call",
		},
		{
			Key:         "defaults.model",
			Value:       "",
			Description: "Model override; empty uses the provider model",
		},
		{
			Key:         "defaults.temperature",
			Value:       0.0,
			Description: "Sampling temperature",
		},
		{
			Key:         "defaults.max_tokens",
			Value:       0,
			Description: "Output token limit; 0 uses the provider default",
		},
		{
			Key:         "defaults.max_workers",
			Value:       4,
			Description: "Maximum concurrent question group extractions",
		},
		{
			Key:         "defaults.hint_concurrency",
			Value:       4,
			Description: "Maximum concurrent hint image classifications",
		},
		{
			Key:         "defaults.language",
			Value:       "English",
			Description: "Target language for deck translations",
		},

		// ===================
		// Cache
		// ===================
		{
			Key:         "cache.max_entries",
			Value:       500,
			Description: "Maximum cached generation responses",
		},
		{
			Key:         "cache.ttl",
			Value:       "1h",
			Description: "Time-to-live for cached responses",
		},

		// ===================
		// Retry
		// ===================
		{
			Key:         "retry.max_retries",
			Value:       3,
			Description: "Retries after the first attempt for transient failures",
		},
		{
			Key:         "retry.initial_delay",
			Value:       "1s",
			Description: "Backoff before the first retry; doubles per attempt",
		},
		{
			Key:         "retry.timeout",
			Value:       "2m",
			Description: "Timeout for a single provider attempt",
		},

		// ===================
		// Pricing
		// ===================
		{
			Key: "pricing",
			Value: []map[string]any{
				{"model": "gemini-2.5-flash", "input": 0.30, "output": 2.50, "cached_input": 0.075},
				{"model": "gpt-4.1-mini", "input": 0.40, "output": 1.60, "cached_input": 0.10},
				{"model": "claude-sonnet-4-5", "input": 3.00, "output": 15.00, "cached_input": 0.30},
			},
			Description: "USD per million tokens, used when a provider does not report cost",
		},

		// ===================
		// Prompts
		// ===================
		{
			Key:         "prompts.override_dir",
			Value:       "",
			Description: "Directory of <key>.tmpl prompt overrides; empty uses ~/.pagedeck/prompts",
		},
	}
}

// applyDefaults registers every default entry on v.
func applyDefaults(v *viper.Viper) {
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// Keys returns every documented key, sorted.
func Keys() []string {
	entries := DefaultEntries()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

// ResetToDefault sets key back to its default value in m's live configuration.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(m *Manager, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return m.Set(key, def.Value)
}
