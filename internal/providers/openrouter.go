package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	openRouterDefaultModel = "google/gemini-2.5-flash"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	HTTPClient   *http.Client // Optional (tests)
}

// OpenRouterClient implements LLMClient using the OpenRouter chat completions API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openRouterDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       httpClient,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Generate sends one chat completion request.
func (c *OpenRouterClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}

	prompt := req.Prompt
	if req.ResponseFormat != nil {
		rf, err := adaptedResponseFormat(model, req.ResponseFormat)
		if err != nil {
			return nil, err
		}
		if rf == nil {
			// Model cannot take a native schema; ask for it in the prompt instead.
			prompt += structuredInstruction(req.ResponseFormat)
		}
		orReq.ResponseFormat = rf
	}

	if req.System != "" {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: "system", Content: req.System})
	}
	orReq.Messages = append(orReq.Messages, openRouterMessage{
		Role:    "user",
		Content: buildOpenRouterContent(prompt, req),
	})

	orResp, err := c.doRequest(ctx, "/chat/completions", &orReq)
	if err != nil {
		return nil, err
	}

	if orResp.Error != nil {
		return nil, fmt.Errorf("%s model error: %s", OpenRouterName, orResp.Error.Message)
	}
	if len(orResp.Choices) == 0 {
		return nil, Transient(fmt.Errorf("%s: no choices in response", OpenRouterName))
	}

	content := ""
	switch v := orResp.Choices[0].Message.Content.(type) {
	case nil:
	case string:
		content = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal content: %w", err)
		}
		content = string(b)
	}
	if content == "" {
		return nil, fmt.Errorf("%s: %w", OpenRouterName, ErrEmptyResponse)
	}

	result := &Result{
		Content:            content,
		PromptTokens:       orResp.Usage.PromptTokens,
		CompletionTokens:   orResp.Usage.CompletionTokens,
		CachedPromptTokens: orResp.Usage.PromptTokensDetails.CachedTokens,
		TotalTokens:        orResp.Usage.TotalTokens,
		CostUSD:            orResp.Usage.Cost,
		ExecutionTime:      time.Since(start),
		Provider:           OpenRouterName,
		ModelUsed:          orResp.Model,
		RequestID:          requestID,
	}
	if result.CostUSD == 0 {
		result.CostUSD = orResp.Usage.NativeTotalCost
	}
	result.normalizeTotal()
	return result, nil
}

// buildOpenRouterContent returns plain text when there are no attachments,
// otherwise a multipart content array.
func buildOpenRouterContent(prompt string, req *Request) any {
	attachments := req.Attachments()
	if len(attachments) == 0 {
		return prompt
	}

	content := []openRouterContent{{Type: "text", Text: prompt}}
	for i, a := range attachments {
		if isImageMIME(a.MIMEType) {
			content = append(content, openRouterContent{
				Type:     "image_url",
				ImageURL: &openRouterImageURL{URL: a.DataURL()},
			})
			continue
		}
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("attachment-%d%s", i, extensionFor(a.MIMEType))
		}
		content = append(content, openRouterContent{
			Type: "file",
			File: &openRouterFile{Filename: name, FileData: a.DataURL()},
		})
	}
	return content
}

// Verify interface
var _ LLMClient = (*OpenRouterClient)(nil)
