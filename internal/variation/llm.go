package variation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/llmutil"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// candidate is one entry of the model's answer. Type is free text until Filter
// validates it.
type candidate struct {
	Variation   string `json:"variation"`
	Type        string `json:"type"`
	Explanation string `json:"explanation"`
}

// envelope is the object form some providers force in JSON mode.
type envelope struct {
	Variations []candidate `json:"variations"`
}

// LLMGenerator asks a language model for paraphrases of a trigger phrase.
type LLMGenerator struct {
	client  llmclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMGenerator creates a generator. A zero timeout means only the caller's
// context bounds the call.
func NewLLMGenerator(client llmclient.Client, timeout time.Duration, logger *zap.Logger) *LLMGenerator {
	return &LLMGenerator{client: client, timeout: timeout, logger: logger.Named("variation.llm")}
}

func (g *LLMGenerator) GenerateVariations(ctx context.Context, intent plugin.SemanticIntent, budget Budget) ([]plugin.SemanticVariation, error) {
	vs, _, err := g.GenerateMeteredVariations(ctx, intent, budget)
	return vs, err
}

func (g *LLMGenerator) GenerateMeteredVariations(ctx context.Context, intent plugin.SemanticIntent, budget Budget) ([]plugin.SemanticVariation, Spend, error) {
	if budget.MaxVariations <= 0 {
		return nil, Spend{}, nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := llmclient.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt(intent, budget.MaxVariations),
		Tier:         llmclient.TierFast,
		Options: llmclient.GenerationOptions{
			Temperature:     0.7,
			ForceJSONFormat: true,
			MaxOutputTokens: budget.MaxTokens,
		},
	}
	resp, err := g.client.Generate(ctx, req)
	if err != nil {
		return nil, Spend{}, fmt.Errorf("variation generation failed: %w", err)
	}
	spend := Spend{Model: resp.Model, Usage: resp.Usage}

	raw, err := decodeCandidates(resp.Text)
	if err != nil {
		g.logger.Warn("Failed to parse variation response.",
			zap.String("phrase", intent.RawPhrase),
			zap.String("raw_response", observability.Preview(resp.Text, 200)),
			zap.Error(err))
		return nil, spend, err
	}

	vs := make([]plugin.SemanticVariation, 0, len(raw))
	for _, c := range raw {
		vs = append(vs, plugin.SemanticVariation{
			Variation:     c.Variation,
			VariationType: plugin.VariationType(c.Type),
			Explanation:   c.Explanation,
		})
	}
	kept := Filter(intent.RawPhrase, vs, budget.MaxVariations)
	if dropped := len(raw) - len(kept); dropped > 0 {
		g.logger.Debug("Discarded variations.", zap.String("phrase", intent.RawPhrase), zap.Int("dropped", dropped))
	}
	return kept, spend, nil
}

// decodeCandidates accepts either a bare array or {"variations": [...]}.
func decodeCandidates(text string) ([]candidate, error) {
	trimmed := strings.TrimSpace(llmutil.ExtractJSON(text, '['))
	if strings.HasPrefix(trimmed, "[") {
		return llmutil.ParseJSONResponse[[]candidate](trimmed)
	}
	env, err := llmutil.ParseJSONResponse[envelope](text)
	if err != nil {
		return nil, err
	}
	return env.Variations, nil
}

const systemPrompt = `You generate test phrasings for an AI agent plugin evaluator.
Given a trigger phrase and its parsed intent, write alternative requests a real user
might type that mean the same thing and should trigger the same component.

Respond ONLY with a JSON object: {"variations": [{"variation": "...", "type": "...", "explanation": "..."}]}

Allowed types:
- synonym: replace the action or object with a synonym.
- related_concept: refer to a closely related concept the component also covers.
- structure: same meaning, different sentence structure.
- informal: casual, terse or conversational phrasing.

Rules:
- Never repeat the original phrase.
- Keep each variation under 120 characters.
- Do not mention the plugin, the component name or slash commands.`

func userPrompt(intent plugin.SemanticIntent, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trigger phrase: %q\n", intent.RawPhrase)
	fmt.Fprintf(&sb, "Action: %s\nObject: %s\n", intent.Action, intent.Object)
	if intent.Context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", intent.Context)
	}
	fmt.Fprintf(&sb, "Write up to %d variations, mixing the allowed types.", n)
	return sb.String()
}
