package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Usage is the token metadata reported for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a single generate call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float32
	// JSON asks the provider for an application/json response.
	JSON bool
}

// Response is the generated text with optional usage metadata.
type Response struct {
	Text  string
	Model string
	Usage *Usage
}

// TokenCount returns the total tokens of the call, or 0 when the provider
// reported no metadata.
func (r *Response) TokenCount() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	if r.Usage.TotalTokens > 0 {
		return r.Usage.TotalTokens
	}
	return r.Usage.PromptTokens + r.Usage.CompletionTokens
}

// Client generates text from a system and user prompt.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// NewClient builds the configured provider client wrapped with per-attempt
// timeouts, bounded retries and a circuit breaker.
func NewClient(ctx context.Context, config *Config, apiKey string, logger *zap.Logger) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var base Client
	switch config.Provider {
	case ProviderGemini, "":
		gc, err := NewGeminiClient(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		base = gc
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", config.Provider)
	}

	retrying := NewRetryingClient(base, config.Timeout, config.MaxRetries, config.RetryDelay, logger)
	return NewBreakerClient(retrying, config.Breaker, logger), nil
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate sends one request to Gemini.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req.Model == "" {
		return nil, &APICallError{Message: "no model specified"}
	}

	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return nil, &APICallError{Model: req.Model, Message: "generate content", Retryable: true, Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &APICallError{Model: req.Model, Message: "read response", Cause: err}
	}

	out := &Response{Text: text, Model: req.Model}
	if md := resp.UsageMetadata; md != nil {
		out.Usage = &Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return out, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
