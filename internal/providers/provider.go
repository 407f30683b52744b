// Package providers adapts hosted language models to a single structured
// generation request/response shape. Providers make exactly one upstream
// attempt per call; retry policy belongs to the caller.
package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"
)

// LLMClient is implemented by every model backend.
type LLMClient interface {
	// Generate sends one multimodal request and returns the raw model output.
	// Errors that are worth retrying satisfy IsTransient.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Name returns the client identifier (e.g., "gemini").
	Name() string
}

// Attachment is a binary input such as a hint image or the source PDF.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// DataURL renders the attachment as a base64 data URL.
func (a Attachment) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Base64 returns the standard base64 encoding of the attachment bytes.
func (a Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// ResponseFormat specifies structured output format.
// JSONSchema holds the OpenAI-style wrapper {"name","strict","schema"}.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// Request is a single structured generation request.
type Request struct {
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`

	// Attachments, in the order they are sent after the prompt text.
	Images   []Attachment `json:"images,omitempty"`
	Document *Attachment  `json:"document,omitempty"`
	Files    []Attachment `json:"files,omitempty"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters. Nil temperature uses the provider default.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// Attachments returns document, images and files in send order.
func (r *Request) Attachments() []Attachment {
	out := make([]Attachment, 0, len(r.Images)+len(r.Files)+1)
	if r.Document != nil {
		out = append(out, *r.Document)
	}
	out = append(out, r.Images...)
	out = append(out, r.Files...)
	return out
}

// Result is the raw response of one provider attempt.
type Result struct {
	Content string `json:"content"`

	// Token counts
	PromptTokens       int `json:"prompt_tokens"`
	CompletionTokens   int `json:"completion_tokens"`
	CachedPromptTokens int `json:"cached_prompt_tokens,omitempty"`
	TotalTokens        int `json:"total_tokens"`

	// CostUSD is set only when the provider reports it.
	CostUSD       float64       `json:"cost_usd,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
}

// normalizeTotal fills TotalTokens when the provider leaves it empty.
func (r *Result) normalizeTotal() {
	if r.TotalTokens == 0 {
		r.TotalTokens = r.PromptTokens + r.CompletionTokens
	}
}
