package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
)

// OpenAIClient implements Client for OpenAI chat models.
type OpenAIClient struct {
	client openai.Client
	config config.LLMModelConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a client. The SDK's own retries are disabled.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate sends one chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerationRequest) (Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.config.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Options.Temperature),
	}
	if n := maxTokens(req, c.config.MaxTokens); n > 0 {
		params.MaxCompletionTokens = openai.Int(int64(n))
	}
	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		c.logger.Warn("OpenAI request failed.", zap.Int("status", status), zap.Error(err))
		return Response{}, classify(fmt.Errorf("openai chat completion: %w", err), status)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("openai API returned no choices")
	}

	out := Response{
		Text:  completion.Choices[0].Message.Content,
		Model: completion.Model,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	c.logger.Debug("LLM generation complete (OpenAI)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.InputTokens),
		zap.Int("completion_tokens", out.Usage.OutputTokens))
	return out, nil
}

func (c *OpenAIClient) Close() error { return nil }
