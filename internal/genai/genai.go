// Package genai wraps the OpenAI chat completion API for the engage engine.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glowdesk/engage/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Generation errors.
var (
	ErrNoAPIKey      = fmt.Errorf("OpenAI API key not set")
	ErrEmptyResponse = fmt.Errorf("model returned no choices")
)

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL sets a non-default API endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model used for all calls.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a GenAI client from the given options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(DefaultModel)
	}
	slog.Debug("GenAI.NewClient: client configured", "model", model, "base_url_set", cfg.BaseURL != "")
	return &Client{client: openai.NewClient(reqOpts...), model: model}, nil
}

// Generate produces a completion for the given system and user prompts and
// returns the text along with token usage for the call.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, models.TokenUsage, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		slog.Error("GenAI.Generate: completion failed", "error", err, "model", c.model)
		return "", models.TokenUsage{}, err
	}
	usage := models.TokenUsage{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CompletionTokens,
		Total:  resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.Generate: empty response", "model", c.model)
		return "", usage, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, usage, nil
}
