// Package llmcall provides model call recording for traceability.
// Every generation call is recorded with its cache label, prompt hash and metrics.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/pagedeck/pagedeck/internal/metrics"
)

// Call represents a recorded generation call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int64     `json:"latency_ms"`

	// Context references
	RunID string `json:"run_id,omitempty"`
	Stage string `json:"stage,omitempty"`

	// Prompt traceability
	Label     string `json:"label"`
	PromptCID string `json:"prompt_cid,omitempty"` // Hash of the exact prompt text sent
	CacheKey  string `json:"cache_key,omitempty"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Usage
	Usage         metrics.Usage `json:"usage"`
	CostUSD       float64       `json:"cost_usd,omitempty"`
	CacheHit      bool          `json:"cache_hit"`
	RetryAttempts int           `json:"retry_attempts"`

	// Response
	Response string `json:"response,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for building a Call.
type RecordOptions struct {
	RunID string
	Stage string

	Label     string
	PromptCID string
	CacheKey  string

	Provider string
	Model    string

	// Pointer to distinguish "not set" from "set to 0"
	Temperature *float64
}

// NewCall builds a Call from call metrics and the outcome.
// The response text is kept only for successful calls.
func NewCall(opts RecordOptions, m metrics.CallMetrics, response string, err error) *Call {
	call := &Call{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		LatencyMs:     m.LatencyMs,
		RunID:         opts.RunID,
		Stage:         opts.Stage,
		Label:         opts.Label,
		PromptCID:     opts.PromptCID,
		CacheKey:      opts.CacheKey,
		Provider:      opts.Provider,
		Model:         opts.Model,
		Temperature:   opts.Temperature,
		Usage:         m.Usage,
		CostUSD:       m.CostUSD,
		CacheHit:      m.CacheHit,
		RetryAttempts: m.RetryAttempts,
		Success:       err == nil,
	}
	if err != nil {
		call.Error = err.Error()
	} else {
		call.Response = response
	}
	return call
}
