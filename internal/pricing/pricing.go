// Package pricing converts token counts into US dollars.
//
// Rates are per one million tokens. Lookups never fail: an unknown model is
// priced at the default (mid-tier) rate so a cost can always be reported, even
// for model identifiers released after this table was written.
package pricing

import (
	"fmt"
	"slices"
)

// ModelPricing holds USD rates per one million tokens.
type ModelPricing struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// DefaultModel names the entry used for unknown model identifiers.
const DefaultModel = "default"

const perMillion = 1_000_000.0

var (
	opusRates   = ModelPricing{Input: 15.00, Output: 75.00}
	sonnetRates = ModelPricing{Input: 3.00, Output: 15.00}
	haikuRates  = ModelPricing{Input: 0.80, Output: 4.00}
)

// table is read-only after init.
var table = map[string]ModelPricing{
	DefaultModel: sonnetRates,

	// Anthropic
	"claude-opus-4-1":            opusRates,
	"claude-opus-4-1-20250805":   opusRates,
	"claude-opus-4":              opusRates,
	"claude-opus-4-20250514":     opusRates,
	"claude-sonnet-4-5":          sonnetRates,
	"claude-sonnet-4-5-20250929": sonnetRates,
	"claude-sonnet-4":            sonnetRates,
	"claude-sonnet-4-20250514":   sonnetRates,
	"claude-3-7-sonnet-20250219": sonnetRates,
	"claude-3-5-sonnet-20241022": sonnetRates,
	"claude-haiku-4-5":           {Input: 1.00, Output: 5.00},
	"claude-3-5-haiku-20241022":  haikuRates,
	"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25},

	// Google, used by the variation generator and the LLM agent runner
	"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
	"gemini-2.5-flash": {Input: 0.30, Output: 2.50},

	// OpenAI
	"gpt-4o":      {Input: 2.50, Output: 10.00},
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
}

// GetModelPricing returns the rates for modelID, or the default entry on a miss.
func GetModelPricing(modelID string) ModelPricing {
	if p, ok := table[modelID]; ok {
		return p
	}
	return table[DefaultModel]
}

// IsKnown reports whether modelID has its own entry.
func IsKnown(modelID string) bool {
	_, ok := table[modelID]
	return ok && modelID != DefaultModel
}

// KnownModels lists the model identifiers with explicit rates, sorted.
func KnownModels() []string {
	out := make([]string, 0, len(table)-1)
	for id := range table {
		if id != DefaultModel {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// CalculateCost returns the unrounded dollar cost of a call.
func CalculateCost(modelID string, inputTokens, outputTokens int) float64 {
	if inputTokens == 0 && outputTokens == 0 {
		return 0
	}
	p := GetModelPricing(modelID)
	return float64(inputTokens)/perMillion*p.Input + float64(outputTokens)/perMillion*p.Output
}

// FormatCost renders amount in dollars. Amounts under a cent keep four
// decimals so they do not display as $0.00.
func FormatCost(amount float64) string {
	if amount < 0.01 {
		return fmt.Sprintf("$%.4f", amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}
