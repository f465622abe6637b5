// Package variation produces semantic variations of trigger phrases: rewordings
// a user might say that should still reach the same component.
package variation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// Budget bounds a single GenerateVariations call.
type Budget struct {
	// MaxTokens caps the generator's output tokens.
	MaxTokens int
	// MaxVariations caps how many variations are returned.
	MaxVariations int
}

// BudgetFromTuning reads the per-intent budget from resolved tuning.
func BudgetFromTuning(t config.Tuning) Budget {
	return Budget{
		MaxTokens:     t.TokenEstimates.SemanticGenMaxTokens,
		MaxVariations: t.Limits.MaxVariationsPerIntent,
	}
}

// Generator produces variations for one intent. Invalid candidates are
// dropped, never retried. An error means no variations were produced.
type Generator interface {
	GenerateVariations(ctx context.Context, intent plugin.SemanticIntent, budget Budget) ([]plugin.SemanticVariation, error)
}

// Spend is what one generation call billed.
type Spend struct {
	Model string
	Usage llmclient.Usage
}

// MeteredGenerator is a Generator backed by a billed model. It reports the
// spend of each call, including calls whose answer could not be used.
type MeteredGenerator interface {
	Generator
	GenerateMeteredVariations(ctx context.Context, intent plugin.SemanticIntent, budget Budget) ([]plugin.SemanticVariation, Spend, error)
}

// New returns the generator selected by provider. VariationProviderNone
// yields a nil Generator.
func New(provider config.VariationProvider, client llmclient.Client, tuning config.Tuning, logger *zap.Logger) (Generator, error) {
	switch provider {
	case config.VariationProviderNone:
		return nil, nil
	case config.VariationProviderRules:
		return NewRuleGenerator(), nil
	case config.VariationProviderLLM:
		if client == nil {
			return nil, fmt.Errorf("variation provider %q requires an LLM client", provider)
		}
		return NewLLMGenerator(client, tuning.Timeouts.SemanticGen(), logger), nil
	default:
		return nil, fmt.Errorf("unknown variation provider: %q", provider)
	}
}

// Filter keeps valid variations of original, drops case-insensitive
// duplicates and truncates to limit. Order is preserved.
func Filter(original string, candidates []plugin.SemanticVariation, limit int) []plugin.SemanticVariation {
	out := make([]plugin.SemanticVariation, 0, min(len(candidates), max(0, limit)))
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(original)): {}}
	for _, v := range candidates {
		if len(out) >= limit {
			break
		}
		v.OriginalTrigger = original
		v.Variation = strings.TrimSpace(v.Variation)
		if !v.Valid() {
			continue
		}
		t, _ := plugin.ParseVariationType(string(v.VariationType))
		v.VariationType = t
		key := strings.ToLower(v.Variation)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Dedupe drops variations that repeat a trigger phrase of c, one of its
// existing variations or an earlier entry of vs. Case and surrounding space
// are ignored. It spans all intents of a component.
func Dedupe(c plugin.Component, vs []plugin.SemanticVariation) []plugin.SemanticVariation {
	key := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	seen := map[string]struct{}{}
	for _, p := range c.Triggers() {
		seen[key(p)] = struct{}{}
	}
	for _, v := range c.Variations() {
		seen[key(v.Variation)] = struct{}{}
	}

	out := make([]plugin.SemanticVariation, 0, len(vs))
	for _, v := range vs {
		k := key(v.Variation)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
