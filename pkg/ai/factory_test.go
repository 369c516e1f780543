package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/config"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
)

func TestNewAnalyzer_ProviderSwitch(t *testing.T) {
	logger := zap.NewNop()

	analyzer, err := NewAnalyzer(config.AIConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		Endpoint: "https://api.openai.com/v1",
		APIKey:   "test-key",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, (*OpenAIClient)(nil), analyzer)

	analyzer, err = NewAnalyzer(config.AIConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-0",
		APIKey:   "test-key",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, (*AnthropicClient)(nil), analyzer)

	_, err = NewAnalyzer(config.AIConfig{Provider: "gemini"}, logger)
	assert.ErrorContains(t, err, "unknown analysis provider")
}

func TestNewOpenAIClient_Validation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewOpenAIClient(&Config{Model: "gpt-4o"}, logger)
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewOpenAIClient(&Config{Endpoint: "https://api.openai.com/v1"}, logger)
	assert.ErrorContains(t, err, "model is required")
}

func TestNewAnthropicClient_Validation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewAnthropicClient(&Config{Model: "claude-sonnet-4-0"}, logger)
	assert.ErrorContains(t, err, "api key is required")

	_, err = NewAnthropicClient(&Config{APIKey: "test-key"}, logger)
	assert.ErrorContains(t, err, "model is required")
}

func TestMock_RecordsCalls(t *testing.T) {
	mock := &Mock{
		Verdict: "Resolved: the shelf is fully stocked.",
		Analysis: &models.AIAnalysis{
			Summary: "Storage area is cluttered.",
			SuggestedActions: []models.SuggestedAction{
				{Priority: "high", Action: "Clear the walkway"},
			},
		},
	}

	verdict, err := mock.VerifyPhoto(context.Background(), VerifyRequest{
		ImageURL:      "https://cdn.example.com/photo.jpg",
		CriterionName: "Shelf stocking",
	})
	require.NoError(t, err)
	assert.Equal(t, "Resolved: the shelf is fully stocked.", verdict)
	require.Len(t, mock.VerifyCalls, 1)
	assert.Equal(t, "Shelf stocking", mock.VerifyCalls[0].CriterionName)

	analysis, err := mock.AnalyzeSubmission(context.Background(), AnalyzeRequest{
		ImageURL:   "https://cdn.example.com/photo.jpg",
		PromptText: "Photograph the back-of-house storage area",
	})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.True(t, analysis.IsStructured())
	require.Len(t, mock.AnalyzeCalls, 1)
	assert.Equal(t, "Photograph the back-of-house storage area", mock.AnalyzeCalls[0].PromptText)
}
