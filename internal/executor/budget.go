package executor

import (
	"fmt"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// charsPerToken approximates tokenisation for English prompts.
const charsPerToken = 4

// EstimateUsage predicts a scenario's token usage before any call is made.
// Input covers the system prompt, the component's own definition and the
// user message; output is the flat per-scenario estimate.
func EstimateUsage(s scenario.TestScenario, est config.TokenEstimatesTuning) llmclient.Usage {
	in := est.SystemPrompt + (len(s.UserMessage)+charsPerToken-1)/charsPerToken
	switch s.Component.Kind {
	case plugin.KindSkill:
		in += est.PerSkill
	case plugin.KindAgent:
		in += est.PerAgent
	case plugin.KindCommand:
		in += est.PerCommand
	}
	return llmclient.Usage{InputTokens: in, OutputTokens: est.OutputPerScenario}
}

// BudgetGuard rejects batches whose estimated tokens would exceed the
// configured ceiling after the safety margin.
type BudgetGuard struct {
	estimates config.TokenEstimatesTuning
	ceiling   int
}

func NewBudgetGuard(t config.Tuning) *BudgetGuard {
	return &BudgetGuard{estimates: t.TokenEstimates, ceiling: t.Batching.BudgetCeiling()}
}

// Estimate sums EstimateUsage over batch.
func (g *BudgetGuard) Estimate(batch []scenario.TestScenario) int {
	total := 0
	for _, s := range batch {
		u := EstimateUsage(s, g.estimates)
		total += u.InputTokens + u.OutputTokens
	}
	return total
}

// Check returns a BudgetExceeded *ExecutionError when batch is too large.
func (g *BudgetGuard) Check(batch []scenario.TestScenario) error {
	if est := g.Estimate(batch); est > g.ceiling {
		return &ExecutionError{
			Kind:    KindBudget,
			Message: fmt.Sprintf("batch of %d scenarios needs ~%d tokens, ceiling is %d", len(batch), est, g.ceiling),
		}
	}
	return nil
}
