package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockReply is one scripted response. Err takes precedence over Content.
type MockReply struct {
	Content string
	Err     error
}

// MockClient is an LLMClient for testing. Replies are served in order; once
// the script runs out, Respond (if set) or ResponseText is used.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage
	CostUSD      float64

	// Respond computes a reply from the request when set.
	Respond func(req *Request) (string, error)

	mu       sync.Mutex
	script   []MockReply
	requests []*Request

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "{}",
		CostUSD:      0.001,
	}
}

// NewScriptedMockClient returns a mock that replays replies in order.
func NewScriptedMockClient(replies ...MockReply) *MockClient {
	c := NewMockClient()
	c.script = append(c.script, replies...)
	return c
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Enqueue appends scripted replies.
func (c *MockClient) Enqueue(replies ...MockReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, replies...)
}

// Generate returns the next scripted reply.
func (c *MockClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	var next *MockReply
	if len(c.script) > 0 {
		next = &c.script[0]
		c.script = c.script[1:]
	}
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := c.ResponseText
	if len(c.ResponseJSON) > 0 {
		content = string(c.ResponseJSON)
	}
	switch {
	case next != nil:
		if next.Err != nil {
			return nil, next.Err
		}
		content = next.Content
	case c.Respond != nil:
		var err error
		content, err = c.Respond(req)
		if err != nil {
			return nil, err
		}
	}

	// Rough token estimate
	promptTokens := (len(req.System) + len(req.Prompt)) / 4
	completionTokens := len(content) / 4

	return &Result{
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          c.CostUSD,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received.
func (c *MockClient) Requests() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter and history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
