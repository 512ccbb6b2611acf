// Package genai answers open gym questions with a chat-completion model.
//
// Both OpenAI and Gemini are reached through the openai-go client; Gemini is served by its
// OpenAI-compatible endpoint.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	// GeminiBaseURL is Gemini's OpenAI-compatible endpoint
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultGeminiModel is used when no model is configured for Gemini
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultOpenAIModel is used when no model is configured for OpenAI
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultTemperature is the sampling temperature
	DefaultTemperature = 0.4
	// DefaultMaxTokens bounds an answer to a few paragraphs
	DefaultMaxTokens = 800
	// DefaultTimeout bounds one completion request
	DefaultTimeout = 45 * time.Second
)

var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyQuestion     = errors.New("question cannot be empty")
	ErrMissingAPIKey     = errors.New("genai API key not set")
)

// chatService is the slice of the openai-go client the oracle uses.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithProvider selects "gemini" or "openai".
func WithProvider(p string) Option {
	return func(o *Opts) { o.Provider = strings.ToLower(strings.TrimSpace(p)) }
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the provider default model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTimeout bounds a single request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client answers questions about the gym.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

// NewClient builds a client for the configured provider.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Provider:    ProviderGemini,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GeminiBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
	default:
		return nil, fmt.Errorf("unsupported genai provider %q", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	cli := openai.NewClient(reqOpts...)
	slog.Debug("genai.NewClient: client ready", "provider", cfg.Provider, "model", cfg.Model)
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Ask answers question in the language it was asked in (English or Spanish). An empty
// model answer is returned as "" without error.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	lang := DetectLanguage(question)
	slog.Debug("Client.Ask: sending question", "language", lang, "length", len(question))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(lang)),
			openai.UserMessage(question),
		},
		Model: openai.ChatModel(c.model),
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("Client.Ask: completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("Client.Ask: answer received", "model", c.model, "length", len(answer))
	return answer, nil
}
