package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

const (
	AnthropicName = "anthropic"

	anthropicDefaultModel     = "claude-sonnet-4-5"
	anthropicDefaultMaxTokens = 16384
)

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// AnthropicClient implements LLMClient on the Anthropic Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicClient creates a new Anthropic client. SDK-level retries are
// disabled; callers own the retry policy.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = anthropicDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}
}

// Name returns the client identifier.
func (c *AnthropicClient) Name() string {
	return AnthropicName
}

// Generate sends one Messages.New call.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	prompt := req.Prompt + structuredInstruction(req.ResponseFormat)

	// Documents and images go before the text, as the API recommends.
	var blocks []anthropic.ContentBlockParamUnion
	for _, a := range req.Attachments() {
		switch {
		case isPDFMIME(a.MIMEType):
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: a.Base64()}))
		case isImageMIME(a.MIMEType):
			blocks = append(blocks, anthropic.NewImageBlockBase64(a.MIMEType, a.Base64()))
		default:
			return nil, fmt.Errorf("%s: unsupported attachment type %q", AnthropicName, a.MIMEType)
		}
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, fmt.Errorf("%s: %w", AnthropicName, ErrEmptyResponse)
	}

	result := &Result{
		Content:            content,
		PromptTokens:       int(msg.Usage.InputTokens),
		CompletionTokens:   int(msg.Usage.OutputTokens),
		CachedPromptTokens: int(msg.Usage.CacheReadInputTokens),
		ExecutionTime:      time.Since(start),
		Provider:           AnthropicName,
		ModelUsed:          string(msg.Model),
		RequestID:          requestID,
	}
	result.normalizeTotal()
	return result, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		se := &StatusError{
			Provider:   AnthropicName,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Error(),
		}
		if apiErr.Response != nil {
			se.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return se
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return Transient(fmt.Errorf("%s request failed: %w", AnthropicName, err))
}

// Verify interface
var _ LLMClient = (*AnthropicClient)(nil)
