package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pagedeck/pagedeck/internal/cache"
	"github.com/pagedeck/pagedeck/internal/config"
	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/home"
	"github.com/pagedeck/pagedeck/internal/llmcall"
	"github.com/pagedeck/pagedeck/internal/pipeline"
	"github.com/pagedeck/pagedeck/internal/providers"
)

// app holds the process-wide services shared by every pipeline run: the
// provider registry, the response cache and the call recorders.
type app struct {
	home     *home.Dir
	config   *config.Manager
	logger   *slog.Logger
	registry *providers.Registry
	cache    *cache.ResponseCache
	recorder llmcall.Recorder
	closers  []io.Closer
}

func newApp() (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	mgr.SetLogger(logger)
	cfg := mgr.Get()
	if path := mgr.ConfigFileUsed(); path != "" {
		logger.Debug("loaded config", "file", path)
	}

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(cfg.ToProviderRegistryConfig())

	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return nil, err
	}

	a := &app{
		home:     h,
		config:   mgr,
		logger:   logger,
		registry: registry,
		cache:    cache.New(cache.Config{MaxEntries: cfg.Cache.MaxEntries, TTL: ttl}),
	}

	recorders := llmcall.Multi{llmcall.NewLogRecorder(logger)}
	if traceFile != "" {
		trace, err := llmcall.OpenJSONLFile(traceFile)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, trace)
		a.closers = append(a.closers, trace)
	}
	a.recorder = recorders

	return a, nil
}

// Close flushes trace files and releases provider clients.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.registry.Close())
	return errors.Join(errs...)
}

// orchestrator builds a pipeline for cfg on top of the shared services. The
// provider client is leased; release the lease once the pipeline is done.
func (a *app) orchestrator(cfg *config.Config) (*pipeline.Orchestrator, *providers.Lease, error) {
	delay, err := cfg.Retry.InitialDelayDuration()
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.Retry.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	name := cfg.Defaults.LLMProvider
	lease, err := a.registry.Acquire(name)
	if err != nil {
		return nil, nil, fmt.Errorf("provider %q is not available; check that it is enabled and its api_key is set: %w", name, err)
	}
	orch, err := a.buildOrchestrator(cfg, lease, delay, timeout)
	if err != nil {
		lease.Release()
		return nil, nil, err
	}
	return orch, lease, nil
}

func (a *app) buildOrchestrator(cfg *config.Config, lease *providers.Lease, delay, timeout time.Duration) (*pipeline.Orchestrator, error) {
	// max_retries: 0 in config means no retries.
	retries := cfg.Retry.MaxRetries
	if retries == 0 {
		retries = -1
	}

	gen, err := generation.New(generation.Config{
		Provider:     lease.Client,
		Limiter:      lease.Limiter,
		Cache:        a.cache,
		Recorder:     a.recorder,
		Pricing:      cfg.PricingTable(),
		Model:        cfg.Defaults.Model,
		Temperature:  cfg.Defaults.Temperature,
		MaxTokens:    cfg.Defaults.MaxTokens,
		MaxRetries:   retries,
		InitialDelay: delay,
		Timeout:      timeout,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, err
	}

	overrideDir := cfg.Prompts.OverrideDir
	if overrideDir == "" {
		overrideDir = a.home.PromptsPath()
	}

	return pipeline.New(pipeline.Config{
		Generator:       gen,
		Prompts:         pipeline.NewPromptResolver(overrideDir, a.logger),
		MaxWorkers:      cfg.Defaults.MaxWorkers,
		HintConcurrency: cfg.Defaults.HintConcurrency,
		Language:        cfg.Defaults.Language,
		Logger:          a.logger,
	})
}
