package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticVariation_Valid(t *testing.T) {
	base := SemanticVariation{OriginalTrigger: "review my code", VariationType: VariationSynonym}

	tests := []struct {
		name      string
		variation string
		vtype     VariationType
		want      bool
	}{
		{"paraphrase", "look over my code", VariationSynonym, true},
		{"identical", "review my code", VariationSynonym, false},
		{"case only", "Review My Code", VariationSynonym, false},
		{"padded", "  review my code ", VariationSynonym, false},
		{"empty", "   ", VariationSynonym, false},
		{"unknown type", "look over my code", "poetic", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			v.Variation, v.VariationType = tt.variation, tt.vtype
			assert.Equal(t, tt.want, v.Valid())
		})
	}
}

func TestParseVariationType(t *testing.T) {
	for _, vt := range VariationTypes {
		got, ok := ParseVariationType(string(vt))
		assert.True(t, ok)
		assert.Equal(t, vt, got)
	}
	got, ok := ParseVariationType(" Related-Concept ")
	assert.True(t, ok)
	assert.Equal(t, VariationRelatedConcept, got)
	_, ok = ParseVariationType("rhyme")
	assert.False(t, ok)
}

func TestWithVariations_CopyOnAppend(t *testing.T) {
	v1 := SemanticVariation{OriginalTrigger: "a b", Variation: "c d", VariationType: VariationSynonym}
	v2 := SemanticVariation{OriginalTrigger: "a b", Variation: "e f", VariationType: VariationInformal}

	orig := CommandComponent{Name: "x", FullName: "x"}
	withOne := orig.WithVariations(v1)
	withTwo := withOne.WithVariations(v2)

	assert.Empty(t, orig.Variations())
	assert.Equal(t, []SemanticVariation{v1}, withOne.Variations())
	assert.Equal(t, []SemanticVariation{v1, v2}, withTwo.Variations())

	cmd, ok := withTwo.(CommandComponent)
	require.True(t, ok)
	assert.Equal(t, "x", cmd.FullName)

	for _, c := range []Component{SkillComponent{}, AgentComponent{}} {
		assert.Len(t, c.WithVariations(v1).Variations(), 1)
	}
}
