package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
)

// NewClient creates a Client for one configured model.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s %s %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic)
	}
}

// NewClientForModel resolves name through the router config and builds its client.
func NewClientForModel(ctx context.Context, cfg config.LLMRouterConfig, name string, logger *zap.Logger) (Client, error) {
	return NewClient(ctx, cfg.ModelConfig(name), logger)
}

// NewRouterFromConfig builds the fast and powerful tier clients.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*Router, error) {
	fast, err := NewClientForModel(ctx, cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("fast tier: %w", err)
	}
	if cfg.DefaultPowerfulModel == cfg.DefaultFastModel {
		return NewRouter(logger, fast, fast)
	}
	powerful, err := NewClientForModel(ctx, cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("powerful tier: %w", err)
	}
	return NewRouter(logger, fast, powerful)
}
