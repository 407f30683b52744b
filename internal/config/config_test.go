package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.LLMProvider != "gemini" {
		t.Errorf("Defaults.LLMProvider = %q, want gemini", cfg.Defaults.LLMProvider)
	}
	if cfg.Defaults.MaxWorkers != 4 {
		t.Errorf("Defaults.MaxWorkers = %d, want 4", cfg.Defaults.MaxWorkers)
	}
	if cfg.Defaults.Temperature == nil || *cfg.Defaults.Temperature != 0 {
		t.Errorf("Defaults.Temperature = %v, want 0", cfg.Defaults.Temperature)
	}
	for _, name := range []string{"gemini", "openrouter", "openai", "anthropic", "mock"} {
		if _, ok := cfg.GetLLMProvider(name); !ok {
			t.Errorf("missing default provider %q", name)
		}
	}
	if cfg.LLMProviders["gemini"].APIKey != "${GEMINI_API_KEY}" {
		t.Error("expected gemini API key placeholder")
	}
	if _, ok := cfg.EnabledLLMProviders()["mock"]; ok {
		t.Error("mock provider should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	ttl, err := cfg.Cache.TTLDuration()
	if err != nil || ttl != time.Hour {
		t.Errorf("TTLDuration() = %v, %v, want 1h", ttl, err)
	}
	timeout, err := cfg.Retry.TimeoutDuration()
	if err != nil || timeout != 2*time.Minute {
		t.Errorf("TimeoutDuration() = %v, %v, want 2m", timeout, err)
	}
}

func TestConfig_PricingTable(t *testing.T) {
	table := DefaultConfig().PricingTable()

	price, ok := table.Lookup("google/gemini-2.5-flash")
	if !ok {
		t.Fatal("expected pricing for gemini-2.5-flash via vendor prefix")
	}
	if price.InputPerMillion != 0.30 || price.OutputPerMillion != 2.50 {
		t.Errorf("price = %+v", price)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "unknown default provider",
			mutate:  func(c *Config) { c.Defaults.LLMProvider = "nope" },
			wantSub: `"nope" is not configured`,
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Defaults.MaxWorkers = -1 },
			wantSub: "defaults.max_workers",
		},
		{
			name: "temperature out of range",
			mutate: func(c *Config) {
				v := 3.0
				c.Defaults.Temperature = &v
			},
			wantSub: "defaults.temperature",
		},
		{
			name:    "bad ttl",
			mutate:  func(c *Config) { c.Cache.TTL = "forever" },
			wantSub: "cache.ttl",
		},
		{
			name:    "provider without type",
			mutate:  func(c *Config) { c.LLMProviders["custom"] = LLMProviderCfg{Enabled: true} },
			wantSub: "llm_providers.custom.type",
		},
		{
			name:    "pricing without model",
			mutate:  func(c *Config) { c.Pricing = append(c.Pricing, PriceCfg{Input: 1}) },
			wantSub: "pricing[3].model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_OPENROUTER_KEY", "or-key-123")

	cfg := DefaultConfig()
	cfg.LLMProviders["openrouter"] = LLMProviderCfg{
		Type:           "openrouter",
		Model:          "google/gemini-2.5-flash",
		APIKey:         "${TEST_OPENROUTER_KEY}",
		BaseURL:        "http://localhost:9999",
		RateLimit:      30,
		TimeoutSeconds: 45,
		Enabled:        true,
	}

	reg := cfg.ToProviderRegistryConfig()
	or, ok := reg.LLMProviders["openrouter"]
	if !ok {
		t.Fatal("openrouter missing from registry config")
	}
	if or.APIKey != "or-key-123" {
		t.Errorf("APIKey = %q, want or-key-123", or.APIKey)
	}
	if or.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", or.Timeout)
	}
	if or.BaseURL != "http://localhost:9999" || or.RateLimit != 30 {
		t.Errorf("unexpected provider config: %+v", or)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
defaults:
  llm_provider: openrouter
  max_workers: 8
llm_providers:
  openrouter:
    model: anthropic/claude-sonnet-4
`)

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Defaults.LLMProvider != "openrouter" {
			t.Errorf("LLMProvider = %q, want openrouter", cfg.Defaults.LLMProvider)
		}
		if cfg.Defaults.MaxWorkers != 8 {
			t.Errorf("MaxWorkers = %d, want 8", cfg.Defaults.MaxWorkers)
		}
		or := cfg.LLMProviders["openrouter"]
		if or.Model != "anthropic/claude-sonnet-4" {
			t.Errorf("openrouter model = %q", or.Model)
		}
		if or.Type != "openrouter" {
			t.Errorf("openrouter type = %q, defaults should fill unset keys", or.Type)
		}
		if mgr.ConfigFileUsed() != configFile {
			t.Errorf("ConfigFileUsed() = %q, want %q", mgr.ConfigFileUsed(), configFile)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := writeConfig(t, `
defaults:
  max_workers: 8
`)
		t.Setenv("PAGEDECK_DEFAULTS_MAX_WORKERS", "2")

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Defaults.MaxWorkers; got != 2 {
			t.Errorf("MaxWorkers = %d, want 2", got)
		}
	})

	t.Run("search path without file uses defaults", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		dir := t.TempDir()
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })

		mgr, err := NewManager("", dir)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if mgr.ConfigFileUsed() != "" {
			t.Errorf("ConfigFileUsed() = %q, want empty", mgr.ConfigFileUsed())
		}
		if mgr.Get().Defaults.LLMProvider != "gemini" {
			t.Error("expected defaults when no config file exists")
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil {
			t.Fatal("expected error for missing explicit config file")
		}
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		configFile := writeConfig(t, `
defaults:
  llm_provider: nowhere
`)
		if _, err := NewManager(configFile); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  max_workers: 3\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Set(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  max_workers: 3\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var got int
	mgr.OnChange(func(cfg *Config) { got = cfg.Defaults.MaxWorkers })

	if err := mgr.Set("defaults.max_workers", 9); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got != 9 || mgr.Get().Defaults.MaxWorkers != 9 {
		t.Errorf("MaxWorkers = %d (callback %d), want 9", mgr.Get().Defaults.MaxWorkers, got)
	}

	if err := ResetToDefault(mgr, "defaults.max_workers"); err != nil {
		t.Fatalf("ResetToDefault() error = %v", err)
	}
	if mgr.Get().Defaults.MaxWorkers != 4 {
		t.Errorf("MaxWorkers after reset = %d, want 4", mgr.Get().Defaults.MaxWorkers)
	}

	if err := ResetToDefault(mgr, "does.not.exist"); !errors.Is(err, ErrNoDefault) {
		t.Errorf("ResetToDefault() error = %v, want ErrNoDefault", err)
	}

	if err := mgr.Set("defaults.max_workers", -5); err == nil {
		t.Error("Set() should reject an invalid value")
	}
	if mgr.Get().Defaults.MaxWorkers != 4 {
		t.Error("rejected Set() must keep the previous config")
	}
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  max_workers: 3\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.MaxWorkers
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
defaults:
  max_workers: 2
`)

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Defaults.MaxWorkers; got != 2 {
		t.Errorf("initial value mismatch: expected 2, got %d", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Defaults.MaxWorkers))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_workers: 6\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == 6 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Defaults.MaxWorkers; got != 6 {
		t.Errorf("config not updated: expected 6, got %d", got)
	}
	if v := lastValue.Load(); v != 6 {
		t.Errorf("callback received wrong value: expected 6, got %d", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# pagedeck configuration") {
		t.Error("missing header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if cfg.Defaults.LLMProvider != "gemini" || cfg.Cache.TTL != "1h" {
		t.Errorf("round-tripped defaults = %+v", cfg.Defaults)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() on written default error = %v", err)
	}
	if len(mgr.Get().Pricing) != 3 {
		t.Errorf("Pricing entries = %d, want 3", len(mgr.Get().Pricing))
	}
}
