package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestAsk_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("  El plan mensual cuesta $60.000 COP 💪  ")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.4, maxTokens: 100}

	out, err := client.Ask(context.Background(), "¿Cuánto cuesta la mensualidad?")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "El plan mensual cuesta $60.000 COP 💪" {
		t.Errorf("expected trimmed answer, got %q", out)
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %q", mock.params.Model)
	}
	if len(mock.params.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(mock.params.Messages))
	}
}

func TestAsk_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: "m"}
	_, err := client.Ask(context.Background(), "hola")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestAsk_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}, model: "m"}
	_, err := client.Ask(context.Background(), "hola")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestAsk_EmptyAnswer(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completion("   ")}, model: "m"}
	out, err := client.Ask(context.Background(), "hola")
	if err != nil || out != "" {
		t.Errorf("expected empty answer without error, got %q, %v", out, err)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	mock := &mockChatService{resp: completion("x")}
	client := &Client{chat: mock, model: "m"}
	if _, err := client.Ask(context.Background(), "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_Providers(t *testing.T) {
	gem, err := NewClient(WithAPIKey("k"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gem.model != DefaultGeminiModel {
		t.Errorf("expected default Gemini model, got %s", gem.model)
	}

	oai, err := NewClient(WithAPIKey("k"), WithProvider(" OpenAI "), WithModel("gpt-x"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if oai.model != "gpt-x" {
		t.Errorf("expected configured model, got %s", oai.model)
	}

	if _, err := NewClient(WithAPIKey("k"), WithProvider("claude")); err == nil {
		t.Error("expected error for unsupported provider")
	}
}
