package variation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/mocks"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

func TestBudgetFromTuning(t *testing.T) {
	b := BudgetFromTuning(config.DefaultTuning())
	assert.Equal(t, Budget{MaxTokens: 1000, MaxVariations: 4}, b)
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tuning := config.DefaultTuning()

	g, err := New(config.VariationProviderNone, nil, tuning, logger)
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = New(config.VariationProviderRules, nil, tuning, logger)
	require.NoError(t, err)
	assert.IsType(t, &RuleGenerator{}, g)

	_, err = New(config.VariationProviderLLM, nil, tuning, logger)
	assert.ErrorContains(t, err, "requires an LLM client")

	g, err = New(config.VariationProviderLLM, &mocks.MockLLMClient{}, tuning, logger)
	require.NoError(t, err)
	assert.IsType(t, &LLMGenerator{}, g)

	_, err = New("astrology", nil, tuning, logger)
	assert.ErrorContains(t, err, "unknown variation provider")
}

func TestFilter(t *testing.T) {
	const original = "review my code"
	in := []plugin.SemanticVariation{
		{Variation: "review my code", VariationType: plugin.VariationSynonym},
		{Variation: "  Review My Code ", VariationType: plugin.VariationSynonym},
		{Variation: "", VariationType: plugin.VariationInformal},
		{Variation: "look over my code", VariationType: "synonym"},
		{Variation: "LOOK OVER MY CODE", VariationType: plugin.VariationInformal},
		{Variation: "audit the source", VariationType: "related-concept"},
		{Variation: "check this out", VariationType: "poetry"},
		{Variation: "can you peek at my code", VariationType: plugin.VariationInformal},
		{Variation: "my code, review it", VariationType: plugin.VariationStructure},
	}

	got := Filter(original, in, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "look over my code", got[0].Variation)
	assert.Equal(t, plugin.VariationRelatedConcept, got[1].VariationType, "hyphenated types are normalised")
	assert.Equal(t, "can you peek at my code", got[2].Variation)
	for _, v := range got {
		assert.Equal(t, original, v.OriginalTrigger)
		assert.NotEqual(t, original, v.Variation)
	}

	assert.Empty(t, Filter(original, in, 0))
	assert.Empty(t, Filter(original, nil, 5))
}

func TestDedupe(t *testing.T) {
	skill := plugin.SkillComponent{
		Name:           "files",
		TriggerPhrases: []string{"create a file", "create the file"},
		SemanticVariations: []plugin.SemanticVariation{
			{OriginalTrigger: "create a file", Variation: "make the file", VariationType: plugin.VariationSynonym},
		},
	}
	gen := NewRuleGenerator()
	budget := Budget{MaxTokens: 1000, MaxVariations: 4}

	var all []plugin.SemanticVariation
	for _, phrase := range skill.TriggerPhrases {
		intent, ok := plugin.ExtractIntent(phrase)
		require.True(t, ok, phrase)
		vs, err := gen.GenerateVariations(context.Background(), intent, budget)
		require.NoError(t, err)
		all = append(all, vs...)
	}
	all = append(all, plugin.SemanticVariation{OriginalTrigger: "create a file", Variation: "  Create The File ", VariationType: plugin.VariationStructure})

	got := Dedupe(skill, all)
	require.NotEmpty(t, got)
	seen := map[string]struct{}{}
	for _, v := range got {
		k := strings.ToLower(strings.TrimSpace(v.Variation))
		_, dup := seen[k]
		assert.False(t, dup, "duplicate %q", v.Variation)
		seen[k] = struct{}{}
		assert.NotEqual(t, "make the file", k, "already on the component")
		assert.NotEqual(t, "create the file", k, "a trigger phrase")
	}
	assert.Less(t, len(got), len(all))
}
