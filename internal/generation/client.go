// Package generation wraps a model provider with response caching, bounded
// retry with exponential backoff, schema validation and per-call metrics.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/pagedeck/pagedeck/internal/cache"
	"github.com/pagedeck/pagedeck/internal/llmcall"
	"github.com/pagedeck/pagedeck/internal/metrics"
	"github.com/pagedeck/pagedeck/internal/providers"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultTimeout      = 2 * time.Minute

	// maxBackoffShift keeps InitialDelay << n from overflowing.
	maxBackoffShift = 30
)

// Config configures a Client.
type Config struct {
	// Provider performs the model calls. Required.
	Provider providers.LLMClient

	// Limiter, when set, is waited on before every attempt.
	Limiter *providers.RateLimiter

	// Cache, when set, stores validated responses for labelled requests.
	Cache *cache.ResponseCache

	// Recorder receives one Call per Generate. Defaults to a no-op.
	Recorder llmcall.Recorder

	// Pricing is consulted when the provider does not report cost.
	Pricing metrics.Pricing

	// Defaults applied when a request leaves them unset.
	Model       string
	Temperature *float64
	MaxTokens   int

	// MaxRetries is the number of retries after the first attempt.
	// Zero uses DefaultMaxRetries; negative disables retries.
	MaxRetries   int
	InitialDelay time.Duration
	// Timeout bounds each attempt.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client is a structured generation client. Safe for concurrent use.
type Client struct {
	provider     providers.LLMClient
	limiter      *providers.RateLimiter
	cache        *cache.ResponseCache
	recorder     llmcall.Recorder
	pricing      metrics.Pricing
	model        string
	temperature  *float64
	maxTokens    int
	maxRetries   int
	initialDelay time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

// Request is one structured generation request.
type Request struct {
	// Label identifies the call in traces; when non-empty it also enables
	// caching, keyed on the label together with every request input.
	Label string
	Stage string
	RunID string

	System string
	Prompt string
	// PromptCID is the hash of the template version that produced Prompt.
	PromptCID string

	Images   []providers.Attachment
	Document *providers.Attachment
	Files    []providers.Attachment

	Schema *providers.ResponseFormat

	// Check, when set, runs on the schema-valid response before it is cached.
	// A failure is returned as a *ValidationError and nothing is cached.
	Check func(json.RawMessage) error

	// Optional overrides of the client defaults.
	Model       string
	Temperature *float64
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = llmcall.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		provider:     cfg.Provider,
		limiter:      cfg.Limiter,
		cache:        cfg.Cache,
		recorder:     cfg.Recorder,
		pricing:      cfg.Pricing,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}, nil
}

// ProviderName returns the name of the wrapped provider.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Model returns the default model, or "" when the provider picks one.
func (c *Client) Model() string {
	return c.model
}

// Cache returns the response cache, or nil.
func (c *Client) Cache() *cache.ResponseCache {
	return c.cache
}

// Backoff returns the delay before retry n (0-based): initial * 2^n.
// The sequence is strictly increasing.
func Backoff(initial time.Duration, n uint) time.Duration {
	if n > maxBackoffShift {
		n = maxBackoffShift
	}
	return initial << n
}

// CacheKey returns the cache fingerprint for req as this client would send it.
func (c *Client) CacheKey(req Request) string {
	preq := c.providerRequest(req)

	var schema []byte
	if preq.ResponseFormat != nil {
		schema = preq.ResponseFormat.JSONSchema
	}
	blobs := [][]byte{[]byte(preq.System), schema, []byte(preq.Model)}
	if preq.Document != nil {
		blobs = appendAttachment(blobs, "document", *preq.Document)
	}
	for _, a := range preq.Images {
		blobs = appendAttachment(blobs, "image", a)
	}
	for _, a := range preq.Files {
		blobs = appendAttachment(blobs, "file", a)
	}
	return cache.Fingerprint(req.Label, preq.Prompt, blobs...)
}

// appendAttachment tags each attachment with the request field it came from,
// so the same bytes sent as an image and as a file key differently.
func appendAttachment(blobs [][]byte, field string, a providers.Attachment) [][]byte {
	return append(blobs, []byte(field), []byte(a.MIMEType), a.Data)
}

// Generate runs one structured generation call and returns the validated JSON.
func (c *Client) Generate(ctx context.Context, req Request) (json.RawMessage, metrics.CallMetrics, error) {
	start := time.Now()
	var m metrics.CallMetrics

	if req.Prompt == "" && req.Document == nil && len(req.Images) == 0 && len(req.Files) == 0 {
		return nil, m, fmt.Errorf("generation %q: %w", req.Label, ErrEmptyPrompt)
	}

	preq := c.providerRequest(req)
	opts := llmcall.RecordOptions{
		RunID:       req.RunID,
		Stage:       req.Stage,
		Label:       req.Label,
		PromptCID:   req.PromptCID,
		Provider:    c.provider.Name(),
		Model:       preq.Model,
		Temperature: preq.Temperature,
	}

	var key string
	if req.Label != "" && c.cache != nil {
		key = c.CacheKey(req)
		opts.CacheKey = key
		if cached, ok := c.cache.Get(key); ok {
			m.CacheHit = true
			m.LatencyMs = time.Since(start).Milliseconds()
			c.logger.Debug("generation cache hit", "label", req.Label, "stage", req.Stage)
			c.recorder.RecordCall(llmcall.NewCall(opts, m, string(cached), nil))
			return cached, m, nil
		}
	}

	var (
		attempts int
		result   *providers.Result
	)
	err := retry.Do(
		func() error {
			attempts++
			res, err := c.attempt(ctx, preq)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			return c.retryDelay(attempts-1, err)
		}),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("generation attempt failed",
				"label", req.Label,
				"attempt", n+1,
				"error", err)
		}),
	)
	m.RetryAttempts = max(attempts-1, 0)

	if err != nil {
		m.LatencyMs = time.Since(start).Milliseconds()
		perr := &ProviderError{
			Provider: c.provider.Name(),
			Label:    req.Label,
			Attempts: attempts,
			Err:      err,
		}
		c.logger.Warn("generation failed", "label", req.Label, "stage", req.Stage, "attempts", attempts, "error", err)
		c.recorder.RecordCall(llmcall.NewCall(opts, m, "", perr))
		return nil, m, perr
	}

	m.Usage = metrics.Usage{
		InputTokens:       result.PromptTokens,
		OutputTokens:      result.CompletionTokens,
		TotalTokens:       result.TotalTokens,
		CachedInputTokens: result.CachedPromptTokens,
	}
	if result.ModelUsed != "" {
		opts.Model = result.ModelUsed
	}
	m.CostUSD = result.CostUSD
	if m.CostUSD == 0 {
		if cost, ok := c.pricing.Cost(opts.Model, m.Usage); ok {
			m.CostUSD = cost
		}
	}

	parsed, err := providers.ParseStructuredJSON(result.Content)
	if err == nil && preq.ResponseFormat != nil {
		err = providers.ValidateStructuredJSON(preq.ResponseFormat.JSONSchema, parsed)
	}
	if err == nil && req.Check != nil {
		err = req.Check(parsed)
	}
	m.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		verr := &ValidationError{Label: req.Label, Content: result.Content, Err: err}
		c.recorder.RecordCall(llmcall.NewCall(opts, m, "", verr))
		return nil, m, verr
	}

	if key != "" {
		c.cache.Set(key, parsed)
	}
	c.recorder.RecordCall(llmcall.NewCall(opts, m, string(parsed), nil))
	return parsed, m, nil
}

// GenerateInto runs Generate and decodes the result into T.
// A decode failure is reported as a *ValidationError.
func GenerateInto[T any](ctx context.Context, c *Client, req Request) (T, metrics.CallMetrics, error) {
	var out T
	raw, m, err := c.Generate(ctx, req)
	if err != nil {
		return out, m, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, m, &ValidationError{Label: req.Label, Content: string(raw), Err: err}
	}
	return out, m, nil
}

// attempt performs one rate-limited, time-bounded provider call.
func (c *Client) attempt(ctx context.Context, preq *providers.Request) (*providers.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.provider.Generate(actx, preq)
	if err != nil {
		if providers.IsRateLimited(err) {
			hint, _ := providers.RetryAfterHint(err)
			c.limiter.Record429(hint)
		}
		return nil, err
	}
	return res, nil
}

// retryDelay is the wait before retry n (0-based). A longer server
// Retry-After hint wins.
func (c *Client) retryDelay(n int, err error) time.Duration {
	d := Backoff(c.initialDelay, uint(n))
	if hint, ok := providers.RetryAfterHint(err); ok && hint > d {
		d = hint
	}
	return d
}

func (c *Client) providerRequest(req Request) *providers.Request {
	preq := &providers.Request{
		System:         req.System,
		Prompt:         req.Prompt,
		Images:         req.Images,
		Document:       req.Document,
		Files:          req.Files,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: req.Schema,
	}
	if preq.Model == "" {
		preq.Model = c.model
	}
	if preq.Temperature == nil {
		preq.Temperature = c.temperature
	}
	return preq
}
