package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePromptWithContext_Success(t *testing.T) {
	mock := &mockChatService{resp: completionWith("Hello World")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.5, maxTokens: 64}
	out, err := client.GeneratePromptWithContext(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %q", mock.params.Model)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	if !mock.params.MaxTokens.Valid() || mock.params.MaxTokens.Value != 64 {
		t.Errorf("expected max tokens 64, got %+v", mock.params.MaxTokens)
	}
}

func TestGenerateWithMessages_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateWithMessages(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateWithMessages_NoChoices(t *testing.T) {
	// Empty choices slice
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	_, err := client.GenerateWithMessages(context.Background(), nil)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey when API key not provided, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithBaseURL("https://api.moonshot.cn/v1"), WithModel("kimi-k2-thinking"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.Model() != "kimi-k2-thinking" {
		t.Errorf("expected model override, got %q", cli.Model())
	}
}

func TestNewClient_KeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cli, err := NewClient()
	if err != nil {
		t.Fatalf("expected env key to be used, got %v", err)
	}
	if cli.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", cli.Model())
	}
}
