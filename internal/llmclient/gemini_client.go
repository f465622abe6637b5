// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/plugin-eval/internal/config"
)

// contentGenerator is the slice of genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Client for Google Gemini models.
type GeminiClient struct {
	models contentGenerator
	config config.LLMModelConfig
	logger *zap.Logger
}

// NewGeminiClient creates a client on the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = cfg.Endpoint
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMModelConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{models: models, config: cfg, logger: logger.Named("llm_client.gemini")}
}

// Generate sends one request to Gemini.
func (c *GeminiClient) Generate(ctx context.Context, req GenerationRequest) (Response, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.config.Model, contents, c.buildConfig(req))
	if err != nil {
		var apiErr genai.APIError
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		c.logger.Warn("Gemini request failed.", zap.Int("status", status), zap.Error(err))
		return Response{}, classify(fmt.Errorf("gemini generate: %w", err), status)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Response{}, fmt.Errorf("gemini API returned no candidates")
	}
	cand := resp.Candidates[0]
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		switch cand.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonBlocklist:
			return Response{}, fmt.Errorf("gemini API blocked the request (Reason: %s)", cand.FinishReason)
		}
		return Response{}, NewTransientError(fmt.Errorf("gemini API returned empty content (Reason: %s)", cand.FinishReason))
	}

	out := Response{Text: text, Model: c.config.Model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	c.logger.Debug("LLM generation complete (Gemini)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.InputTokens),
		zap.Int("completion_tokens", out.Usage.OutputTokens))
	return out, nil
}

func (c *GeminiClient) buildConfig(req GenerationRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if c.config.TopP > 0 {
		gc.TopP = genai.Ptr(c.config.TopP)
	}
	if n := maxTokens(req, c.config.MaxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

// Close is a no-op; the genai client holds no resources.
func (c *GeminiClient) Close() error { return nil }
