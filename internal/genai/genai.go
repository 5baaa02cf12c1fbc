// Package genai wraps an OpenAI-compatible chat completion endpoint for the
// interviewer and the profile synthesizer.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default settings for the chat endpoint.
const (
	DefaultModel       = "moonshot-v1-8k"
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 800
)

// ErrNoChoicesReturned is returned when the endpoint answers with an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ErrNoAPIKey is returned when neither an option nor the environment supplies a key.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	DebugMode   bool
	StateDir    string
}

// Option defines a function that modifies GenAI client options.
type Option func(*Opts)

// WithAPIKey sets the API key for the client.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Opts) {
		o.Temperature = temp
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(tokens int) Option {
	return func(o *Opts) {
		o.MaxTokens = tokens
	}
}

// WithDebugMode enables writing request/response pairs under StateDir/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
	}
}

// WithStateDir sets the directory used for debug logs.
func WithStateDir(dir string) Option {
	return func(o *Opts) {
		o.StateDir = dir
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int
	debugMode   bool
	stateDir    string
}

// ThinkingResponse carries the user-facing text plus any model reasoning.
type ThinkingResponse struct {
	Thinking string `json:"thinking"`
	Content  string `json:"content"`
}

// NewClient initializes a new GenAI client. The API key comes from
// WithAPIKey or, failing that, the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI.NewClient: API key not set")
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("GenAI.NewClient: client initialized", "model", cfg.Model, "base_url", cfg.BaseURL, "max_tokens", cfg.MaxTokens, "debug", cfg.DebugMode)
	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) params(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	return params
}

func (c *Client) complete(ctx context.Context, method string, messages []openai.ChatCompletionMessageParamUnion) (openai.ChatCompletionMessage, error) {
	params := c.params(messages)
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI."+method+": chat completion failed", "model", c.model, "error", err)
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	c.writeDebugLog(method, params, resp)
	if len(resp.Choices) == 0 {
		slog.Warn("GenAI."+method+": no choices returned", "model", c.model)
		return openai.ChatCompletionMessage{}, ErrNoChoicesReturned
	}
	return resp.Choices[0].Message, nil
}

// GenerateWithMessages sends a message list and returns the first choice's content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	msg, err := c.complete(ctx, "GenerateWithMessages", messages)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GeneratePromptWithContext generates a response from a system and a user prompt.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.complete(ctx, "GeneratePromptWithContext", []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GenerateThinkingWithMessages returns the content together with any
// reasoning the model exposed. Reasoning is read from the reasoning_content
// field that thinking models attach to the message; when absent, content
// shaped as {"thinking": ..., "content": ...} is unpacked instead.
func (c *Client) GenerateThinkingWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*ThinkingResponse, error) {
	msg, err := c.complete(ctx, "GenerateThinkingWithMessages", messages)
	if err != nil {
		return nil, err
	}

	resp := &ThinkingResponse{Content: msg.Content, Thinking: reasoningContent(msg)}
	if resp.Thinking != "" {
		return resp, nil
	}

	trimmed := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(trimmed, "{") {
		var packed ThinkingResponse
		if err := json.Unmarshal([]byte(trimmed), &packed); err == nil && (packed.Thinking != "" || packed.Content != "") {
			slog.Debug("GenAI.GenerateThinkingWithMessages: unpacked structured thinking", "thinking_len", len(packed.Thinking), "content_len", len(packed.Content))
			return &packed, nil
		}
	}
	return resp, nil
}

// reasoningContent extracts the non-standard reasoning_content field.
func reasoningContent(msg openai.ChatCompletionMessage) string {
	if f, ok := msg.JSON.ExtraFields["reasoning_content"]; ok {
		var s string
		if err := json.Unmarshal([]byte(f.Raw()), &s); err == nil && s != "" {
			return s
		}
	}
	raw := msg.RawJSON()
	if raw == "" {
		return ""
	}
	var extra struct {
		ReasoningContent string `json:"reasoning_content"`
	}
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return ""
	}
	return extra.ReasoningContent
}
