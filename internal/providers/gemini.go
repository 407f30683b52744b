package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	GeminiName = "gemini"

	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	// ClientOptions are appended after the API key (tests, endpoints).
	ClientOptions []option.ClientOption
}

// GeminiClient implements LLMClient on the Google Generative AI SDK.
// The schema is sent in the prompt and the model is asked for JSON output;
// conformance is checked by the caller.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiClient creates a Gemini client. Call Close when done.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key is empty", GeminiName)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = geminiDefaultModel
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", GeminiName, err)
	}

	return &GeminiClient{client: cl, defaultModel: cfg.DefaultModel}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Generate sends one GenerateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	m := c.client.GenerativeModel(modelName)
	if req.Temperature != nil {
		m.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	prompt := req.Prompt
	if req.ResponseFormat != nil {
		m.ResponseMIMEType = "application/json"
		prompt += structuredInstruction(req.ResponseFormat)
	}

	parts := []genai.Part{genai.Text(prompt)}
	for _, a := range req.Attachments() {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	content := geminiText(resp)
	if content == "" {
		return nil, fmt.Errorf("%s: %w", GeminiName, ErrEmptyResponse)
	}

	result := &Result{
		Content:       content,
		ExecutionTime: time.Since(start),
		Provider:      GeminiName,
		ModelUsed:     modelName,
		RequestID:     requestID,
	}
	if u := resp.UsageMetadata; u != nil {
		result.PromptTokens = int(u.PromptTokenCount)
		result.CompletionTokens = int(u.CandidatesTokenCount)
		result.CachedPromptTokens = int(u.CachedContentTokenCount)
		result.TotalTokens = int(u.TotalTokenCount)
	}
	result.normalizeTotal()
	return result, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

// classifyGeminiError maps REST and gRPC failures onto StatusError or a
// transient marker.
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &StatusError{
			Provider:   GeminiName,
			StatusCode: gerr.Code,
			Body:       gerr.Message,
			RetryAfter: parseRetryAfter(gerr.Header.Get("Retry-After")),
		}
	}

	switch status.Code(err) {
	case codes.ResourceExhausted:
		return &StatusError{Provider: GeminiName, StatusCode: http.StatusTooManyRequests, Body: err.Error()}
	case codes.Unavailable, codes.Internal:
		return &StatusError{Provider: GeminiName, StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
	case codes.DeadlineExceeded:
		return Transient(fmt.Errorf("%s: %w", GeminiName, err))
	}
	return fmt.Errorf("%s request failed: %w", GeminiName, err)
}

// Verify interface
var _ LLMClient = (*GeminiClient)(nil)
