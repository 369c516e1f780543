package ai

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

// AnthropicClient provides photo analysis through the Anthropic Messages
// API, which accepts image URLs directly.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates a new Anthropic analysis client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("ai-anthropic"),
	}, nil
}

var _ Analyzer = (*AnthropicClient)(nil)

func (c *AnthropicClient) VerifyPhoto(ctx context.Context, req VerifyRequest) (string, error) {
	prompt := fmt.Sprintf("%s\n\nCriterion: %s\nSection: %s",
		verifyInstruction, req.CriterionName, req.SectionName)
	return c.complete(ctx, prompt, req.ImageURL)
}

func (c *AnthropicClient) AnalyzeSubmission(ctx context.Context, req AnalyzeRequest) (*models.AIAnalysis, error) {
	prompt := fmt.Sprintf("%s\n\nPrompt: %s", analyzeInstruction, req.PromptText)
	raw, err := c.complete(ctx, prompt, req.ImageURL)
	if err != nil {
		return nil, err
	}
	return models.ParseAnalysis(raw), nil
}

func (c *AnthropicClient) complete(ctx context.Context, prompt, imageURL string) (string, error) {
	c.logger.Debug("analysis request", zap.String("model", c.model))

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2000,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.MessageContentSource{
					Type: anthropic.MessagesContentSourceTypeUrl,
					Url:  imageURL,
				}),
				anthropic.NewTextMessageContent(prompt),
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			return *block.Text, nil
		}
	}

	return "", fmt.Errorf("analysis backend returned no text content")
}
