package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
)

// defaultAnthropicMaxTokens is used when neither request nor config set a cap;
// the Messages API requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicClient implements Client for Claude models. It is the usual
// backend for the agent under evaluation.
type AnthropicClient struct {
	client anthropic.Client
	config config.LLMModelConfig
	logger *zap.Logger
}

func NewAnthropicClient(cfg config.LLMModelConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API Key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: cfg,
		logger: logger.Named("llm_client.anthropic"),
	}, nil
}

// Generate sends one Messages API request and concatenates the text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerationRequest) (Response, error) {
	n := maxTokens(req, c.config.MaxTokens)
	if n <= 0 {
		n = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(n),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt))},
		Temperature: anthropic.Float(req.Options.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		c.logger.Warn("Anthropic request failed.", zap.Int("status", status), zap.Error(err))
		return Response{}, classify(fmt.Errorf("anthropic messages: %w", err), status)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := Response{
		Text:  sb.String(),
		Model: string(msg.Model),
		Usage: Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
	}
	c.logger.Debug("LLM generation complete (Anthropic)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.InputTokens),
		zap.Int("completion_tokens", out.Usage.OutputTokens))
	return out, nil
}

func (c *AnthropicClient) Close() error { return nil }
