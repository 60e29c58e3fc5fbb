package services

import (
	"context"
	"fmt"

	appconfig "metric-agent/config"
	"metric-agent/models"
	"metric-agent/observability"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiClient defines the interface for OpenAI API calls (for testing)
type openaiClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	ListModels(ctx context.Context) error
}

// openaiClientWrapper wraps the openai.Client to implement our interface
type openaiClientWrapper struct {
	client openai.Client
}

func (w *openaiClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return w.client.Chat.Completions.New(ctx, params)
}

func (w *openaiClientWrapper) ListModels(ctx context.Context) error {
	_, err := w.client.Models.List(ctx)
	return err
}

// OpenAIParser extracts query slots via the OpenAI chat completions API
type OpenAIParser struct {
	client    openaiClient
	model     string
	maxTokens int
}

// NewOpenAIParser creates a new OpenAIParser instance
func NewOpenAIParser(cfg *appconfig.Config) (*OpenAIParser, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIParser{
		client:    &openaiClientWrapper{client: client},
		model:     cfg.LLM.Model,
		maxTokens: cfg.LLM.MaxTokens,
	}, nil
}

// newOpenAIParserWithClient creates an OpenAIParser with a custom client (for testing)
func newOpenAIParserWithClient(client openaiClient, model string, maxTokens int) *OpenAIParser {
	return &OpenAIParser{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// ParseQuery asks the model to map the question onto catalog companies,
// metrics, and a concrete (year, quarter).
func (s *OpenAIParser) ParseQuery(ctx context.Context, payload CatalogPayload) (*models.ParsedGuess, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerOpenAI, "parse")
	timer := metrics.NewTimer()

	userPrompt, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	result, err := WithCircuitBreaker(ctx, BreakerOpenAI, func() (string, error) {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(s.model),
			MaxTokens:   openai.Int(int64(s.maxTokens)),
			Temperature: openai.Float(0),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(parserSystemPrompt),
				openai.UserMessage(userPrompt),
			},
		}

		completion, err := s.client.CreateChatCompletion(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to invoke OpenAI: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("empty response from OpenAI")
		}

		return completion.Choices[0].Message.Content, nil
	})

	timer.ObserveExternalAPI(BreakerOpenAI, "parse")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerOpenAI, "parse", categorizeAPIError(err))
		return nil, err
	}

	return decodeGuess(result)
}

// Ping verifies the API is reachable with the configured credentials
func (s *OpenAIParser) Ping(ctx context.Context) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerOpenAI, "ping")

	_, err := WithCircuitBreaker(ctx, BreakerOpenAI, func() (struct{}, error) {
		return struct{}{}, s.client.ListModels(ctx)
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerOpenAI, "ping", categorizeAPIError(err))
	}
	return err
}

// categorizeAPIError categorizes an error for metrics purposes
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	errStr := err.Error()
	switch {
	case contains(errStr, "timeout", "deadline"):
		return "timeout"
	case contains(errStr, "rate limit", "429"):
		return "rate_limit"
	case contains(errStr, "unauthorized", "401"):
		return "auth_error"
	case contains(errStr, "connection", "network"):
		return "connection_error"
	case contains(errStr, "circuit breaker"):
		return "breaker_open"
	default:
		return "unknown"
	}
}

// contains checks if the string contains any of the substrings
func contains(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(s) >= len(sub) {
			for i := 0; i <= len(s)-len(sub); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
