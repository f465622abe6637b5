// Package llmclient provides provider-agnostic text generation over Gemini,
// OpenAI and Anthropic models, with tier-based routing.
package llmclient

import "context"

// ModelTier selects a model by preference for speed or capability.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions tunes a single request.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	// MaxOutputTokens caps the response. Zero uses the model's configured limit.
	MaxOutputTokens int `json:"max_output_tokens"`
}

// GenerationRequest is one system+user prompt exchange.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// Usage reports the tokens a provider billed for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the text a model produced and what it cost in tokens.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client generates text. Implementations make exactly one provider call per
// Generate; retries belong to the caller.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) (Response, error)
	Close() error
}

// maxTokens picks the per-request cap, falling back to the model config.
func maxTokens(req GenerationRequest, configured int) int {
	if req.Options.MaxOutputTokens > 0 {
		return req.Options.MaxOutputTokens
	}
	return configured
}
