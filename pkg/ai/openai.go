package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// OpenAIClient provides photo analysis through an OpenAI-compatible
// vision endpoint.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	endpoint string
	logger   *zap.Logger
}

// Config holds configuration for creating an analysis client.
type Config struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Model name, e.g., "gpt-4o"
	APIKey   string
}

// NewOpenAIClient creates a new OpenAI-compatible analysis client.
func NewOpenAIClient(cfg *Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		logger:   logger.Named("ai-openai"),
	}, nil
}

var _ Analyzer = (*OpenAIClient)(nil)

func (c *OpenAIClient) VerifyPhoto(ctx context.Context, req VerifyRequest) (string, error) {
	prompt := fmt.Sprintf("Criterion: %s\nSection: %s", req.CriterionName, req.SectionName)
	return c.complete(ctx, verifyInstruction, prompt, req.ImageURL)
}

func (c *OpenAIClient) AnalyzeSubmission(ctx context.Context, req AnalyzeRequest) (*models.AIAnalysis, error) {
	raw, err := c.complete(ctx, analyzeInstruction, "Prompt: "+req.PromptText, req.ImageURL)
	if err != nil {
		return nil, err
	}
	return models.ParseAnalysis(raw), nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt, imageURL string) (string, error) {
	c.logger.Debug("analysis request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analysis backend returned no choices")
	}

	c.logger.Debug("analysis response",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(resp.Choices[0].Message.Content)))

	return resp.Choices[0].Message.Content, nil
}
