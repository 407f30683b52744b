// Package metrics provides cost and usage tracking for model calls.
package metrics

import "time"

// Usage is the token accounting of one or more calls.
type Usage struct {
	InputTokens       int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens      int `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens       int `json:"total_tokens" yaml:"total_tokens"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty" yaml:"cached_input_tokens,omitempty"`
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:       u.InputTokens + o.InputTokens,
		OutputTokens:      u.OutputTokens + o.OutputTokens,
		TotalTokens:       u.TotalTokens + o.TotalTokens,
		CachedInputTokens: u.CachedInputTokens + o.CachedInputTokens,
	}
}

// CallMetrics describes a single generation call as seen by the caller.
// A cache hit carries zero usage, cost and retries.
type CallMetrics struct {
	Usage         Usage   `json:"usage"`
	CostUSD       float64 `json:"cost_usd"`
	LatencyMs     int64   `json:"latency_ms"`
	CacheHit      bool    `json:"cache_hit"`
	RetryAttempts int     `json:"retry_attempts"`
}

// Record is one attributed metric held by an Accumulator.
type Record struct {
	// Attribution (for filtering/aggregation)
	Stage   string `json:"stage,omitempty"`
	ItemKey string `json:"item_key,omitempty"` // e.g., "hint-0", "single_select-q1-1"

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	CallMetrics

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
