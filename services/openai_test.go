package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"metric-agent/config"
	"metric-agent/models"

	"github.com/openai/openai-go"
)

// mockOpenAIClient implements openaiClient for testing
type mockOpenAIClient struct {
	completionFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	listModelsErr  error
}

func (m *mockOpenAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return m.completionFunc(ctx, params)
}

func (m *mockOpenAIClient) ListModels(ctx context.Context) error {
	return m.listModelsErr
}

func completionWith(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func resetBreakers() {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
}

func testPayload() CatalogPayload {
	return CatalogPayload{
		Now:      "2026-08-30",
		Question: "示例集团2024年Q3营业收入",
		Companies: []models.CompanyMeta{
			{DisplayName: "示例集团公司", Aliases: []string{"示例集团"}},
		},
		Metrics: []models.MetricMeta{
			{CanonicalName: "营业收入", Aliases: []string{"营收"}},
		},
	}
}

func TestNewOpenAIParser_MissingAPIKey(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.APIKey = ""

	_, err := NewOpenAIParser(cfg)
	if err == nil {
		t.Error("expected error when API key is missing")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY is required") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNewOpenAIParser_WithAPIKey(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.APIKey = "test-api-key"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 512

	parser, err := NewOpenAIParser(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parser.model != "gpt-4o-mini" {
		t.Errorf("model = %s, want gpt-4o-mini", parser.model)
	}
	if parser.maxTokens != 512 {
		t.Errorf("maxTokens = %d, want 512", parser.maxTokens)
	}
}

func TestOpenAIParser_ParseQuery(t *testing.T) {
	resetBreakers()

	client := &mockOpenAIClient{
		completionFunc: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return completionWith(`{"company":"示例集团公司","metric":"营业收入","year":2024,"quarter":"Q3","need_clarification":false,"ask":""}`), nil
		},
	}
	parser := newOpenAIParserWithClient(client, "gpt-4o-mini", 1024)

	guess, err := parser.ParseQuery(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if guess.Company != "示例集团公司" {
		t.Errorf("Company = %q", guess.Company)
	}
	if guess.Metric != "营业收入" {
		t.Errorf("Metric = %q", guess.Metric)
	}
	if guess.Year != 2024 || guess.Quarter != 3 {
		t.Errorf("period = %d Q%d, want 2024 Q3", guess.Year, guess.Quarter)
	}
	if guess.NeedClarification {
		t.Error("NeedClarification should be false")
	}
}

func TestOpenAIParser_ParseQueryFencedOutput(t *testing.T) {
	resetBreakers()

	client := &mockOpenAIClient{
		completionFunc: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return completionWith("```json\n{\"company\":\"示例集团公司\",\"metric\":\"净利润\",\"year\":2023,\"quarter\":4,\"need_clarification\":false,\"ask\":\"\"}\n```"), nil
		},
	}
	parser := newOpenAIParserWithClient(client, "gpt-4o-mini", 1024)

	guess, err := parser.ParseQuery(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if guess.Metric != "净利润" || guess.Quarter != 4 {
		t.Errorf("guess = %+v", guess)
	}
}

func TestOpenAIParser_ParseQueryClarification(t *testing.T) {
	resetBreakers()

	client := &mockOpenAIClient{
		completionFunc: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return completionWith(`{"need_clarification":true,"ask":"请补充年份与季度。"}`), nil
		},
	}
	parser := newOpenAIParserWithClient(client, "gpt-4o-mini", 1024)

	guess, err := parser.ParseQuery(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if !guess.NeedClarification {
		t.Error("NeedClarification should be true")
	}
	if guess.Ask != "请补充年份与季度。" {
		t.Errorf("Ask = %q", guess.Ask)
	}
}

func TestOpenAIParser_ParseQueryError(t *testing.T) {
	resetBreakers()

	client := &mockOpenAIClient{
		completionFunc: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return nil, errors.New("connection refused")
		},
	}
	parser := newOpenAIParserWithClient(client, "gpt-4o-mini", 1024)

	if _, err := parser.ParseQuery(context.Background(), testPayload()); err == nil {
		t.Error("ParseQuery() should propagate client errors")
	}
}

func TestOpenAIParser_Ping(t *testing.T) {
	resetBreakers()

	parser := newOpenAIParserWithClient(&mockOpenAIClient{}, "gpt-4o-mini", 1024)
	if err := parser.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	resetBreakers()
	parser = newOpenAIParserWithClient(&mockOpenAIClient{listModelsErr: errors.New("401 unauthorized")}, "gpt-4o-mini", 1024)
	if err := parser.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail when the models list call fails")
	}
}
