package ai

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/krauseinafrica/storescore-sub001/pkg/config"
)

// NewAnalyzer creates the configured analysis client. Returns the Analyzer
// interface to enable dependency injection of mocks.
func NewAnalyzer(cfg config.AIConfig, logger *zap.Logger) (Analyzer, error) {
	clientCfg := &Config{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(clientCfg, logger)
	case "anthropic":
		return NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}
