package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
)

// clientProvider creates the LLM client used for agent runs and variation
// generation.
type clientProvider interface {
	Create(ctx context.Context, cfg config.Interface) (llmclient.Client, func(), error)
}

type defaultClientProvider struct{}

// Create builds a router whose powerful tier is the target model, so agent
// runs exercise the model under evaluation while variations use the fast tier.
func (defaultClientProvider) Create(ctx context.Context, cfg config.Interface) (llmclient.Client, func(), error) {
	logger := observability.GetLogger()
	rc := cfg.LLM()
	rc.DefaultPowerfulModel = cfg.Evaluation().TargetModel
	if rc.DefaultFastModel == "" {
		rc.DefaultFastModel = rc.DefaultPowerfulModel
	}

	router, err := llmclient.NewRouterFromConfig(ctx, rc, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM clients: %w", err)
	}
	cleanup := func() {
		if err := router.Close(); err != nil {
			logger.Warn("Failed to close LLM clients.", zap.Error(err))
		}
	}
	return router, cleanup, nil
}
