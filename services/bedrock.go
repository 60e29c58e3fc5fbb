package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"metric-agent/models"
	"metric-agent/observability"
)

const defaultAnthropicVersion = "bedrock-2023-05-31"

// bedrockClient defines the interface for Bedrock API calls (for testing)
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockParser extracts query slots via Claude models on AWS Bedrock
type BedrockParser struct {
	client    bedrockClient
	model     string
	maxTokens int
}

// ClaudeRequest represents the request format for Claude models via Bedrock
type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []ClaudeMessage `json:"messages"`
}

// ClaudeMessage represents a message in the Claude conversation
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeResponse represents the response from Claude models
type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockParser creates a new BedrockParser instance
func NewBedrockParser(ctx context.Context, region, modelID string, maxTokens int) (*BedrockParser, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &BedrockParser{
		client:    bedrockruntime.NewFromConfig(cfg),
		model:     modelID,
		maxTokens: maxTokens,
	}, nil
}

// newBedrockParserWithClient creates a BedrockParser with a custom client (for testing)
func newBedrockParserWithClient(client bedrockClient, model string, maxTokens int) *BedrockParser {
	return &BedrockParser{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// ParseQuery asks Claude to map the question onto catalog companies, metrics,
// and a concrete (year, quarter).
func (s *BedrockParser) ParseQuery(ctx context.Context, payload CatalogPayload) (*models.ParsedGuess, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "parse")
	timer := metrics.NewTimer()

	userPrompt, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (string, error) {
		return s.invoke(ctx, parserSystemPrompt, userPrompt)
	})

	timer.ObserveExternalAPI(BreakerBedrock, "parse")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "parse", categorizeAPIError(err))
		return nil, err
	}

	return decodeGuess(result)
}

// Ping verifies the model is invokable with the configured credentials
func (s *BedrockParser) Ping(ctx context.Context) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "ping")

	_, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (string, error) {
		return s.invoke(ctx, "", "ping")
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "ping", categorizeAPIError(err))
	}
	return err
}

func (s *BedrockParser) invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := ClaudeRequest{
		AnthropicVersion: defaultAnthropicVersion,
		MaxTokens:        s.maxTokens,
		System:           systemPrompt,
		Messages: []ClaudeMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.model),
		Body:        reqBody,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke model: %w", err)
	}

	var response ClaudeResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return response.Content[0].Text, nil
}
